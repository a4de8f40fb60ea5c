// Package birdnet распознаёт птиц по голосу локальной моделью BirdNET (TFLite).
// audio.go готовит звук: декодирует WAV, сводит в моно 48 кГц и режет на фрагменты.
package birdnet

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Параметры входа модели
const (
	SampleRate     = 48000
	ChunkSeconds   = 3.0
	MinChunkSecond = 1.5
	ChunkSamples   = int(SampleRate * ChunkSeconds)
	minChunkLen    = int(SampleRate * MinChunkSecond)
)

// ErrUnsupportedAudio: файл не WAV или формат не поддерживается.
var ErrUnsupportedAudio = errors.New("unsupported audio")

// DecodeWAV читает WAV и возвращает моно-сигнал в диапазоне [-1, 1] на 48 кГц.
func DecodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: не WAV-файл", ErrUnsupportedAudio)
	}
	if dec.BitDepth != 16 && dec.BitDepth != 24 && dec.BitDepth != 32 {
		return nil, fmt.Errorf("%w: глубина %d бит", ErrUnsupportedAudio, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения PCM: %w", err)
	}
	mono := toMono(buf, float32(int64(1)<<(dec.BitDepth-1)))
	return Resample(mono, int(dec.SampleRate), SampleRate), nil
}

// toMono усредняет каналы и нормирует отсчёты делителем divisor.
func toMono(buf *audio.IntBuffer, divisor float32) []float32 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	out := make([]float32, len(buf.Data)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c])
		}
		out[i] = sum / float32(channels) / divisor
	}
	return out
}

// Resample меняет частоту дискретизации линейной интерполяцией.
func Resample(in []float32, from, to int) []float32 {
	if from == to || from <= 0 || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float32, n)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j+1 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

// Split режет сигнал на фрагменты по 3 секунды без перекрытия.
// Хвост короче 1.5 секунды отбрасывается, более длинный дополняется нулями.
func Split(sig []float32) [][]float32 {
	var chunks [][]float32
	for start := 0; start < len(sig); start += ChunkSamples {
		end := min(start+ChunkSamples, len(sig))
		part := sig[start:end]
		if len(part) < minChunkLen {
			break
		}
		chunk := make([]float32, ChunkSamples)
		copy(chunk, part)
		chunks = append(chunks, chunk)
	}
	return chunks
}
