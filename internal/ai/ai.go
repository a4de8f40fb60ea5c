// Package ai содержит клиенты внешних AI-сервисов: распознавание птиц
// по фото (Gemini, HuggingFace) и звуку (OpenAI Whisper + GPT),
// а также запрос справочных данных о виде (Gemini).
//
// Ответы моделей разбираются в фиксированные структуры этого пакета;
// перенос полей в сущности каталога делает пакет birds.
package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"serotonyl.ru/birdwatch/internal/upstream"
)

// Имена провайдеров (совпадают со значениями IMAGE_ID_PROVIDER / SOUND_ID_PROVIDER)
const (
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderBirdNET     = "birdnet"
)

// ErrNotIdentified: сервис ответил, но птицу не распознал.
var ErrNotIdentified = errors.New("bird not identified")

// «Не распознано»: нормальный ответ сервиса, не сбой
var breakerSettings = upstream.DefaultSettings.With(ErrNotIdentified)

// Hint: контекст записи, который помогает модели.
type Hint struct {
	Latitude     *float64
	Longitude    *float64
	LocationName string
	Date         time.Time
}

// Identification: результат распознавания.
type Identification struct {
	Species        string          `json:"identified_species"`
	ScientificName string          `json:"scientific_name"`
	Confidence     Confidence      `json:"confidence_level"`
	Provider       string          `json:"-"`
	Raw            json.RawMessage `json:"-"` // исходный ответ модели для ai_response
}

// Validate проверяет, что результат пригоден для сохранения.
func (i *Identification) Validate() error {
	i.Species = strings.TrimSpace(i.Species)
	i.ScientificName = strings.TrimSpace(i.ScientificName)
	if i.Species == "" || strings.EqualFold(i.Species, "unknown") {
		return ErrNotIdentified
	}
	i.Confidence = i.Confidence.Clamp()
	return nil
}

// Details: справочные данные о виде от модели.
type Details struct {
	Name                    string `json:"name"`
	ScientificName          string `json:"scientific_name"`
	Description             string `json:"description"`
	PhysicalCharacteristics struct {
		WeightRange   string `json:"weight_range"`
		WingspanRange string `json:"wingspan_range"`
		LengthRange   string `json:"length_range"`
	} `json:"physical_characteristics"`
	Classification struct {
		Order  string `json:"order"`
		Family string `json:"family"`
	} `json:"classification"`
	Habitat            string   `json:"habitat"`
	Behavior           string   `json:"behavior"`
	FeedingHabits      string   `json:"feeding_habits"`
	BreedingInfo       string   `json:"breeding_info"`
	MigrationPattern   string   `json:"migration_pattern"`
	ConservationStatus string   `json:"conservation_status"`
	InterestingFacts   []string `json:"interesting_facts"`
}

// ImageIdentifier распознаёт птицу по фото.
type ImageIdentifier interface {
	IdentifyImage(ctx context.Context, image []byte, mimeType string, hint Hint) (*Identification, error)
}

// SoundIdentifier распознаёт птицу по записи голоса.
type SoundIdentifier interface {
	IdentifySound(ctx context.Context, audio []byte, filename string, hint Hint) (*Identification, error)
}

// DetailsProvider возвращает справочные данные о виде.
type DetailsProvider interface {
	BirdDetails(ctx context.Context, name string) (*Details, error)
}

// Confidence: уверенность в процентах 0..100.
// Модели присылают её числом (87.5) или строкой ("87%", "87.5").
type Confidence float64

func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			*c = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("confidence %q: %w", s, err)
		}
		*c = Confidence(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Confidence(f)
	return nil
}

// Clamp приводит значение к диапазону 0..100.
func (c Confidence) Clamp() Confidence {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}

// extractJSON вырезает JSON-объект из текста модели:
// модели часто оборачивают ответ в ```json ... ``` или добавляют пояснения.
func extractJSON(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("в ответе модели нет JSON-объекта")
	}
	return []byte(text[start : end+1]), nil
}

// decodeModelJSON разбирает JSON из текста модели в v и возвращает сырой объект.
func decodeModelJSON(text string, v any) (json.RawMessage, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("разбор ответа модели: %w", err)
	}
	return raw, nil
}

func locationContext(h Hint, prefix string) string {
	if h.LocationName == "" {
		return ""
	}
	return " " + prefix + " " + h.LocationName
}
