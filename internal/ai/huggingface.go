package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	json "github.com/goccy/go-json"

	"serotonyl.ru/birdwatch/internal/upstream"
)

// DefaultHuggingFaceURL: адрес Inference API.
const DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/"

// HuggingFace распознаёт птиц по фото классификатором изображений
// через HuggingFace Inference API.
type HuggingFace struct {
	http    *http.Client
	baseURL string
	token   string
	model   string
	breaker *upstream.Breaker
}

// HuggingFaceConfig: настройки клиента.
type HuggingFaceConfig struct {
	Token      string
	Model      string
	BaseURL    string // пусто: DefaultHuggingFaceURL
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewHuggingFace создаёт клиент классификатора.
func NewHuggingFace(cfg HuggingFaceConfig) *HuggingFace {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultHuggingFaceURL
	}
	return &HuggingFace{
		http:    hc,
		baseURL: strings.TrimSuffix(base, "/") + "/",
		token:   cfg.Token,
		model:   cfg.Model,
		breaker: upstream.New(ProviderHuggingFace, breakerSettings),
	}
}

type hfLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type hfError struct {
	Error string `json:"error"`
}

// IdentifyImage классифицирует фото и возвращает самую вероятную метку.
func (h *HuggingFace) IdentifyImage(ctx context.Context, image []byte, mimeType string, _ Hint) (*Identification, error) {
	return upstream.Call(h.breaker, func() (*Identification, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.model, bytes.NewReader(image))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+h.token)
		req.Header.Set("Content-Type", mimeType)

		resp, err := h.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			var e hfError
			_ = json.Unmarshal(body, &e)
			return nil, fmt.Errorf("huggingface: статус %d: %s", resp.StatusCode, e.Error)
		}

		var labels []hfLabel
		if err := json.Unmarshal(body, &labels); err != nil {
			return nil, fmt.Errorf("разбор ответа huggingface: %w", err)
		}
		best, ok := bestLabel(labels)
		if !ok {
			return nil, ErrNotIdentified
		}

		id := &Identification{
			Species:    speciesFromLabel(best.Label),
			Confidence: Confidence(best.Score * 100),
			Provider:   ProviderHuggingFace,
			Raw:        body,
		}
		if err := id.Validate(); err != nil {
			return nil, err
		}
		return id, nil
	})
}

func bestLabel(labels []hfLabel) (hfLabel, bool) {
	var best hfLabel
	found := false
	for _, l := range labels {
		if !found || l.Score > best.Score {
			best, found = l, true
		}
	}
	return best, found
}

// speciesFromLabel приводит метку классификатора ("AMERICAN_ROBIN",
// "american robin") к виду "American Robin".
func speciesFromLabel(label string) string {
	words := strings.Fields(strings.ReplaceAll(label, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
