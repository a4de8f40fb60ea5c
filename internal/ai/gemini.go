package ai

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"serotonyl.ru/birdwatch/internal/upstream"
)

// generator: часть genai.Models, которой пользуется клиент.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini распознаёт птиц по фото и достаёт справочные данные о виде.
type Gemini struct {
	models  generator
	model   string
	breaker *upstream.Breaker
}

// GeminiConfig: настройки клиента.
type GeminiConfig struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client // nil: клиент по умолчанию
}

// NewGemini создаёт клиент Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента Gemini: %w", err)
	}
	return newGemini(client.Models, cfg.Model), nil
}

func newGemini(models generator, model string) *Gemini {
	return &Gemini{
		models:  models,
		model:   model,
		breaker: upstream.New(ProviderGemini, breakerSettings),
	}
}

const imagePrompt = `Analyze this bird image%s and reply with a single JSON object:
{
  "identified_species": "Common name of the bird",
  "scientific_name": "Scientific name",
  "confidence_level": 0-100,
  "key_features": ["identifying features"],
  "similar_species": ["similar species"],
  "habitat": "Typical habitat",
  "behavior": "Notable behavior observed",
  "additional_notes": "Any other relevant information"
}
If there is no bird in the image, set "identified_species" to "unknown".`

const detailsPrompt = `Provide detailed information about the bird species %q as a single JSON object:
{
  "name": "Common name",
  "scientific_name": "Scientific name",
  "description": "Detailed description",
  "physical_characteristics": {
    "weight_range": "Weight range in grams",
    "wingspan_range": "Wingspan in cm",
    "length_range": "Length in cm"
  },
  "classification": {"order": "Order name", "family": "Family name"},
  "habitat": "Detailed habitat information",
  "behavior": "Behavioral characteristics",
  "feeding_habits": "Feeding habits and diet",
  "breeding_info": "Breeding patterns and information",
  "migration_pattern": "Migration patterns if any",
  "conservation_status": "IUCN status code (LC, NT, VU, EN, CR, EW, EX or DD)",
  "interesting_facts": ["interesting facts"]
}`

func (g *Gemini) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr(float32(0.2)),
		},
	)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("пустой ответ модели %s", g.model)
	}
	return text, nil
}

// IdentifyImage распознаёт птицу на фото.
func (g *Gemini) IdentifyImage(ctx context.Context, image []byte, mimeType string, hint Hint) (*Identification, error) {
	return upstream.Call(g.breaker, func() (*Identification, error) {
		text, err := g.generate(ctx, []*genai.Part{
			genai.NewPartFromText(fmt.Sprintf(imagePrompt, locationContext(hint, "in"))),
			genai.NewPartFromBytes(image, mimeType),
		})
		if err != nil {
			return nil, err
		}

		var id Identification
		raw, err := decodeModelJSON(text, &id)
		if err != nil {
			return nil, err
		}
		if err := id.Validate(); err != nil {
			return nil, err
		}
		id.Provider = ProviderGemini
		id.Raw = raw

		log.WithFields(log.Fields{
			"species":    id.Species,
			"confidence": float64(id.Confidence),
		}).Debug("Gemini распознал птицу")
		return &id, nil
	})
}

// BirdDetails запрашивает справочные данные о виде.
func (g *Gemini) BirdDetails(ctx context.Context, name string) (*Details, error) {
	return upstream.Call(g.breaker, func() (*Details, error) {
		text, err := g.generate(ctx, []*genai.Part{genai.NewPartFromText(fmt.Sprintf(detailsPrompt, name))})
		if err != nil {
			return nil, err
		}
		var d Details
		if _, err := decodeModelJSON(text, &d); err != nil {
			return nil, err
		}
		return &d, nil
	})
}
