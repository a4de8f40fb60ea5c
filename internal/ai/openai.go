package ai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/upstream"
)

// OpenAI распознаёт птиц по голосу: Whisper описывает запись,
// затем чат-модель определяет вид по описанию.
type OpenAI struct {
	client  *openai.Client
	model   string
	breaker *upstream.Breaker
}

// OpenAIConfig: настройки клиента.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string       // пусто: https://api.openai.com/v1
	HTTPClient *http.Client // nil: клиент по умолчанию
}

// NewOpenAI создаёт клиент OpenAI.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		breaker: upstream.New(ProviderOpenAI, breakerSettings),
	}
}

const soundSystemPrompt = "You are an expert ornithologist specializing in bird call identification. Reply with a single JSON object only."

const soundPrompt = `Analyze this bird sound transcription and pattern%s:
%s

Reply in this JSON format:
{
  "identified_species": "Common name of the bird",
  "scientific_name": "Scientific name",
  "confidence_level": 0-100,
  "call_type": "Type of call (song, alarm, etc.)",
  "similar_species": ["species with similar calls"],
  "behavior": "Typical behavior associated with this call",
  "additional_notes": "Any other relevant information"
}
If the recording does not contain a bird, set "identified_species" to "unknown".`

// IdentifySound распознаёт птицу по записи.
func (o *OpenAI) IdentifySound(ctx context.Context, audio []byte, filename string, hint Hint) (*Identification, error) {
	return upstream.Call(o.breaker, func() (*Identification, error) {
		transcript, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    openai.Whisper1,
			FilePath: filename,
			Reader:   bytes.NewReader(audio),
		})
		if err != nil {
			return nil, fmt.Errorf("транскрипция: %w", err)
		}

		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: soundSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(soundPrompt, locationContext(hint, "recorded in"), transcript.Text)},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		})
		if err != nil {
			return nil, fmt.Errorf("анализ звука: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("пустой ответ модели %s", o.model)
		}

		var id Identification
		raw, err := decodeModelJSON(resp.Choices[0].Message.Content, &id)
		if err != nil {
			return nil, err
		}
		if err := id.Validate(); err != nil {
			return nil, err
		}
		id.Provider = ProviderOpenAI
		id.Raw = raw

		log.WithFields(log.Fields{
			"species":    id.Species,
			"confidence": float64(id.Confidence),
		}).Debug("OpenAI распознал птицу по звуку")
		return &id, nil
	})
}
