package birdnet

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tphakala/go-tflite"

	"serotonyl.ru/birdwatch/internal/ai"
)

// Config: пути к модели и параметры инференса.
type Config struct {
	ModelPath   string
	LabelsPath  string
	Threads     int
	Sensitivity float64
}

// Сколько предсказаний брать с фрагмента и в итоге
const (
	topPerChunk = 10
	topOverallN = 3
)

// Classifier: интерпретатор BirdNET. Модель загружается лениво при первом
// вызове, один раз, под мьютексом. Ошибка загрузки не запоминается:
// следующий вызов попробует снова.
// Интерпретатор TFLite не потокобезопасен, поэтому инференс тоже идёт под мьютексом.
type Classifier struct {
	cfg Config

	mu     sync.Mutex
	model  *tflite.Model
	opts   *tflite.InterpreterOptions
	interp *tflite.Interpreter
	labels []string
}

// New создаёт классификатор без загрузки модели.
func New(cfg Config) *Classifier {
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = 1
	}
	return &Classifier{cfg: cfg}
}

// ensureLocked загружает модель и метки. Вызывается под c.mu.
func (c *Classifier) ensureLocked() error {
	if c.interp != nil {
		return nil
	}

	labels, err := loadLabels(c.cfg.LabelsPath)
	if err != nil {
		return err
	}

	model := tflite.NewModelFromFile(c.cfg.ModelPath)
	if model == nil {
		return fmt.Errorf("не удалось загрузить модель BirdNET из %s", c.cfg.ModelPath)
	}
	opts := tflite.NewInterpreterOptions()
	opts.SetNumThread(c.cfg.Threads)
	opts.SetErrorReporter(func(msg string, _ any) {
		log.WithField("message", msg).Error("Ошибка TFLite")
	}, nil)

	interp := tflite.NewInterpreter(model, opts)
	if interp == nil {
		opts.Delete()
		model.Delete()
		return errors.New("не удалось создать интерпретатор BirdNET")
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		opts.Delete()
		model.Delete()
		return fmt.Errorf("ошибка выделения тензоров: %v", status)
	}
	if interp.GetInputTensorCount() < 2 {
		interp.Delete()
		opts.Delete()
		model.Delete()
		return errors.New("модель BirdNET без входа метаданных")
	}

	c.model, c.opts, c.interp, c.labels = model, opts, interp, labels
	log.WithFields(log.Fields{
		"model":   c.cfg.ModelPath,
		"labels":  len(labels),
		"threads": c.cfg.Threads,
	}).Info("Модель BirdNET загружена")
	return nil
}

func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия меток BirdNET: %w", err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения меток BirdNET: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("файл меток %s пуст", path)
	}
	return labels, nil
}

// Predict прогоняет фрагменты через модель и возвращает лучшие виды.
func (c *Classifier) Predict(ctx context.Context, chunks [][]float32, meta [6]float32) ([]Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLocked(); err != nil {
		return nil, err
	}

	perChunk := make([][]Prediction, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		copy(c.interp.GetInputTensor(0).Float32s(), chunk)
		copy(c.interp.GetInputTensor(1).Float32s(), meta[:])
		if status := c.interp.Invoke(); status != tflite.OK {
			return nil, fmt.Errorf("ошибка инференса BirdNET: %v", status)
		}
		out := c.interp.GetOutputTensor(0).Float32s()
		logits := make([]float32, len(out))
		copy(logits, out)
		perChunk = append(perChunk, rankChunk(c.labels, logits, c.cfg.Sensitivity, topPerChunk))
	}
	return topOverall(perChunk, topOverallN), nil
}

// IdentifySound реализует ai.SoundIdentifier для WAV-записей.
func (c *Classifier) IdentifySound(ctx context.Context, audio []byte, _ string, hint ai.Hint) (*ai.Identification, error) {
	sig, err := DecodeWAV(bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	chunks := Split(sig)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: запись короче %.1f с", ErrUnsupportedAudio, MinChunkSecond)
	}

	week := 24
	if !hint.Date.IsZero() {
		week = WeekOf(hint.Date)
	}
	preds, err := c.Predict(ctx, chunks, Metadata(hint.Latitude, hint.Longitude, week))
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 || preds[0].Confidence <= 0 {
		return nil, ai.ErrNotIdentified
	}

	raw, err := json.Marshal(preds)
	if err != nil {
		return nil, err
	}
	sci, common := preds[0].Names()
	id := &ai.Identification{
		Species:        common,
		ScientificName: sci,
		Confidence:     ai.Confidence(preds[0].Confidence * 100),
		Provider:       ai.ProviderBirdNET,
		Raw:            raw,
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return id, nil
}

// Close освобождает интерпретатор и модель.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interp != nil {
		c.interp.Delete()
		c.opts.Delete()
		c.model.Delete()
		c.interp, c.opts, c.model = nil, nil, nil
	}
}
