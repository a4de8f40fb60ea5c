package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/upstream"
)

func TestConfidenceUnmarshal(t *testing.T) {
	cases := map[string]float64{
		`87.5`:     87.5,
		`"92"`:     92,
		`"64 %"`:   64,
		`"  "`:     0,
		`null`:     0,
		`"80.25%"`: 80.25,
	}
	for in, want := range cases {
		var c Confidence
		require.NoError(t, json.Unmarshal([]byte(in), &c), in)
		assert.InDelta(t, want, float64(c), 1e-9, in)
	}

	var c Confidence
	assert.Error(t, json.Unmarshal([]byte(`"very high"`), &c))
	assert.Equal(t, Confidence(100), Confidence(140).Clamp())
	assert.Equal(t, Confidence(0), Confidence(-3).Clamp())
}

func TestDecodeModelJSONStripsFences(t *testing.T) {
	text := "```json\n{\"identified_species\": \"Blue Jay\", \"confidence_level\": \"90%\"}\n```"
	var id Identification
	raw, err := decodeModelJSON(text, &id)
	require.NoError(t, err)
	assert.Equal(t, "Blue Jay", id.Species)
	assert.Equal(t, Confidence(90), id.Confidence)
	assert.True(t, json.Valid(raw))

	_, err = decodeModelJSON("no json here", &id)
	assert.Error(t, err)
}

func TestIdentificationValidate(t *testing.T) {
	id := Identification{Species: "  Unknown "}
	assert.ErrorIs(t, id.Validate(), ErrNotIdentified)

	id = Identification{Species: " Robin ", Confidence: 120}
	require.NoError(t, id.Validate())
	assert.Equal(t, "Robin", id.Species)
	assert.Equal(t, Confidence(100), id.Confidence)
}

// fakeGenerator отдаёт заранее заданный текст вместо Gemini API.
type fakeGenerator struct {
	text  string
	err   error
	calls int
	parts int
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	if len(contents) > 0 {
		f.parts = len(contents[0].Parts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.text, genai.RoleModel)}},
	}, nil
}

func TestGeminiIdentifyImage(t *testing.T) {
	gen := &fakeGenerator{text: `{"identified_species":"Northern Cardinal","scientific_name":"Cardinalis cardinalis","confidence_level":"95"}`}
	g := newGemini(gen, "gemini-test")

	id, err := g.IdentifyImage(context.Background(), []byte{0xff, 0xd8}, "image/jpeg", Hint{LocationName: "Ohio"})
	require.NoError(t, err)
	assert.Equal(t, "Northern Cardinal", id.Species)
	assert.Equal(t, "Cardinalis cardinalis", id.ScientificName)
	assert.Equal(t, Confidence(95), id.Confidence)
	assert.Equal(t, ProviderGemini, id.Provider)
	assert.NotEmpty(t, id.Raw)
	assert.Equal(t, 2, gen.parts)
}

func TestGeminiNotIdentifiedIsUpstreamWrapped(t *testing.T) {
	g := newGemini(&fakeGenerator{text: `{"identified_species":"unknown"}`}, "gemini-test")

	_, err := g.IdentifyImage(context.Background(), []byte{1}, "image/png", Hint{})
	assert.ErrorIs(t, err, ErrNotIdentified)
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestGeminiBirdDetails(t *testing.T) {
	gen := &fakeGenerator{text: `{
		"name": "Blue Jay",
		"description": "A loud corvid",
		"physical_characteristics": {"weight_range": "70-100 g"},
		"classification": {"order": "Passeriformes", "family": "Corvidae"},
		"habitat": "Forests",
		"conservation_status": "LC",
		"interesting_facts": ["Mimics hawks"]
	}`}
	d, err := newGemini(gen, "gemini-test").BirdDetails(context.Background(), "Blue Jay")
	require.NoError(t, err)
	assert.Equal(t, "A loud corvid", d.Description)
	assert.Equal(t, "70-100 g", d.PhysicalCharacteristics.WeightRange)
	assert.Equal(t, "Corvidae", d.Classification.Family)
	assert.Equal(t, []string{"Mimics hawks"}, d.InterestingFacts)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("503 overloaded")}
	g := newGemini(gen, "gemini-test")
	g.breaker = upstream.New("gemini-breaker-test", upstream.Settings{FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := g.BirdDetails(context.Background(), "Robin")
		assert.ErrorIs(t, err, common.ErrUpstream)
	}
	assert.Equal(t, 3, gen.calls)

	// Цепь разомкнута: вызов отклоняется без обращения к сервису
	_, err := g.BirdDetails(context.Background(), "Robin")
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, 3, gen.calls)
}

func TestOpenAIIdentifySound(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodPost, "https://openai.test/v1/audio/transcriptions",
		httpmock.NewStringResponder(http.StatusOK, `{"text":"cheer-up cheerily cheer-up"}`))
	mt.RegisterResponder(http.MethodPost, "https://openai.test/v1/chat/completions",
		httpmock.NewStringResponder(http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-test",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"identified_species\":\"American Robin\",\"scientific_name\":\"Turdus migratorius\",\"confidence_level\":78}"}
			}]
		}`))

	o := NewOpenAI(OpenAIConfig{
		APIKey:     "sk-test",
		Model:      "gpt-test",
		BaseURL:    "https://openai.test/v1",
		HTTPClient: &http.Client{Transport: mt},
	})
	id, err := o.IdentifySound(context.Background(), []byte("RIFF"), "call.wav", Hint{LocationName: "Boston"})
	require.NoError(t, err)
	assert.Equal(t, "American Robin", id.Species)
	assert.Equal(t, Confidence(78), id.Confidence)
	assert.Equal(t, ProviderOpenAI, id.Provider)

	info := mt.GetCallCountInfo()
	assert.Equal(t, 1, info["POST https://openai.test/v1/audio/transcriptions"])
	assert.Equal(t, 1, info["POST https://openai.test/v1/chat/completions"])
}

func TestOpenAIUpstreamFailure(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodPost, "https://openai.test/v1/audio/transcriptions",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`))

	o := NewOpenAI(OpenAIConfig{APIKey: "sk", Model: "gpt", BaseURL: "https://openai.test/v1", HTTPClient: &http.Client{Transport: mt}})
	_, err := o.IdentifySound(context.Background(), []byte("RIFF"), "call.wav", Hint{})
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func newTestHF(mt *httpmock.MockTransport) *HuggingFace {
	return NewHuggingFace(HuggingFaceConfig{
		Token:      "hf_test",
		Model:      "org/birds",
		BaseURL:    "https://hf.test/models",
		HTTPClient: &http.Client{Transport: mt},
	})
}

func TestHuggingFaceIdentifyImage(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodPost, "https://hf.test/models/org/birds",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer hf_test", req.Header.Get("Authorization"))
			assert.Equal(t, "image/jpeg", req.Header.Get("Content-Type"))
			return httpmock.NewStringResponse(http.StatusOK,
				`[{"label":"BALTIMORE_ORIOLE","score":0.12},{"label":"AMERICAN ROBIN","score":0.83}]`), nil
		})

	id, err := newTestHF(mt).IdentifyImage(context.Background(), []byte{0xff}, "image/jpeg", Hint{})
	require.NoError(t, err)
	assert.Equal(t, "American Robin", id.Species)
	assert.InDelta(t, 83, float64(id.Confidence), 1e-9)
	assert.Equal(t, ProviderHuggingFace, id.Provider)
}

func TestHuggingFaceErrors(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodPost, "https://hf.test/models/org/birds",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"error":"Model is loading"}`))
	_, err := newTestHF(mt).IdentifyImage(context.Background(), []byte{1}, "image/png", Hint{})
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Contains(t, err.Error(), "Model is loading")

	mt = httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodPost, "https://hf.test/models/org/birds",
		httpmock.NewStringResponder(http.StatusOK, `[]`))
	_, err = newTestHF(mt).IdentifyImage(context.Background(), []byte{1}, "image/png", Hint{})
	assert.ErrorIs(t, err, ErrNotIdentified)
}

func TestSpeciesFromLabel(t *testing.T) {
	assert.Equal(t, "American Robin", speciesFromLabel("AMERICAN_ROBIN"))
	assert.Equal(t, "Blue Jay", speciesFromLabel("blue  jay"))
}
