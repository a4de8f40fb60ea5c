package birdnet

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Метки модели, которые не являются птицами
var nonBirdLabels = map[string]bool{
	"Human_Human":       true,
	"Non-bird_Non-bird": true,
	"Noise_Noise":       true,
}

// Prediction: вид и уверенность 0..1.
type Prediction struct {
	Label      string  `json:"label"` // "Turdus migratorius_American Robin"
	Confidence float64 `json:"confidence"`
}

// Names разбирает метку на научное и обиходное имя.
func (p Prediction) Names() (scientific, common string) {
	sci, com, ok := strings.Cut(p.Label, "_")
	if !ok {
		return p.Label, p.Label
	}
	return sci, com
}

// Metadata строит вход метамодели: широта, долгота, неделя года и маска.
// Неделя кодируется как cos(week*7.5°)+1 для week в 1..48.
// Без координат маска координат нулевая; без недели нулевая маска недели.
func Metadata(lat, lon *float64, week int) [6]float32 {
	m := [6]float32{-1, -1, -1, 1, 1, 1}
	if lat != nil && lon != nil {
		m[0], m[1] = float32(*lat), float32(*lon)
	} else {
		m[3], m[4], m[5] = 0, 0, 0
	}
	if week >= 1 && week <= 48 {
		m[2] = float32(math.Cos(week2rad(week)) + 1)
	} else {
		m[5] = 0
	}
	return m
}

func week2rad(week int) float64 {
	return float64(week) * 7.5 * math.Pi / 180
}

// WeekOf возвращает «неделю BirdNET» (1..48, по 4 недели в месяце).
func WeekOf(t time.Time) int {
	w := (int(t.Month())-1)*4 + min((t.Day()-1)/7, 3) + 1
	return w
}

// Sigmoid переводит логит в уверенность с учётом чувствительности.
func Sigmoid(x, sensitivity float64) float64 {
	return 1 / (1 + math.Exp(-sensitivity*x))
}

// rankChunk превращает логиты одного фрагмента в top-N предсказаний.
// Не-птицы обнуляются.
func rankChunk(labels []string, logits []float32, sensitivity float64, n int) []Prediction {
	preds := make([]Prediction, 0, len(labels))
	for i, label := range labels {
		if i >= len(logits) {
			break
		}
		conf := Sigmoid(float64(logits[i]), sensitivity)
		if nonBirdLabels[label] {
			conf = 0
		}
		preds = append(preds, Prediction{Label: label, Confidence: conf})
	}
	sortPredictions(preds)
	if len(preds) > n {
		preds = preds[:n]
	}
	return preds
}

func sortPredictions(preds []Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Confidence > preds[j].Confidence
	})
}

// topOverall объединяет предсказания всех фрагментов и берёт n лучших.
func topOverall(perChunk [][]Prediction, n int) []Prediction {
	var all []Prediction
	for _, p := range perChunk {
		all = append(all, p...)
	}
	sortPredictions(all)
	if len(all) > n {
		all = all[:n]
	}
	return all
}
