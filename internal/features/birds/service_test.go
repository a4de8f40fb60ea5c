package birds

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/ai"
	"serotonyl.ru/birdwatch/internal/birdnet"
	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/features/activity"
	"serotonyl.ru/birdwatch/internal/media"
	"serotonyl.ru/birdwatch/internal/testutil"
)

// fakeIdentifier отдаёт заранее заданный результат распознавания.
type fakeIdentifier struct {
	result *ai.Identification
	err    error
	calls  int
}

func (f *fakeIdentifier) IdentifyImage(context.Context, []byte, string, ai.Hint) (*ai.Identification, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeIdentifier) IdentifySound(context.Context, []byte, string, ai.Hint) (*ai.Identification, error) {
	f.calls++
	return f.result, f.err
}

type fakeDetails struct {
	mu      sync.Mutex
	details *ai.Details
	err     error
	calls   int
}

func (f *fakeDetails) BirdDetails(context.Context, string) (*ai.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.details, f.err
}

type recordingStore struct {
	uploads []media.Kind
}

func (s *recordingStore) Upload(_ context.Context, _ []byte, filename string, kind media.Kind, _ string) (*media.Asset, error) {
	s.uploads = append(s.uploads, kind)
	return &media.Asset{PublicID: filename, URL: "https://cdn.test/" + filename}, nil
}

func (s *recordingStore) Enhance(_ context.Context, _ []byte, filename string) (string, error) {
	return "https://cdn.test/enhanced/" + filename, nil
}

func TestApplyDetailsFillsOnlyEmptyFields(t *testing.T) {
	b := &Bird{Name: "Blue Jay", Description: "Already described", ConservationStatus: "DD"}
	d := &ai.Details{
		Description:        "A loud corvid",
		Habitat:            "  Mixed forests ",
		ConservationStatus: "lc",
	}
	d.PhysicalCharacteristics.WeightRange = strings.Repeat("9", 80)
	d.Classification.Family = "Corvidae"

	assert.True(t, ApplyDetails(b, d))
	assert.Equal(t, "Already described", b.Description)
	assert.Equal(t, "Mixed forests", b.Habitat)
	assert.Equal(t, "Corvidae", b.Family)
	assert.Equal(t, "LC", b.ConservationStatus)
	assert.Len(t, b.WeightRange, maxRangeLen)

	// Повторное применение ничего не меняет
	assert.False(t, ApplyDetails(b, d))
}

func TestApplyDetailsConservationStatus(t *testing.T) {
	b := &Bird{ConservationStatus: "EN"}
	assert.False(t, ApplyDetails(b, &ai.Details{ConservationStatus: "LC"}))
	assert.Equal(t, "EN", b.ConservationStatus)

	b = &Bird{ConservationStatus: "DD"}
	assert.False(t, ApplyDetails(b, &ai.Details{ConservationStatus: "Least Concern"}))
	assert.Equal(t, "DD", b.ConservationStatus)
}

func TestTruncateIsRuneSafe(t *testing.T) {
	assert.Equal(t, "Сини", truncate("Синица", 4))
	assert.Equal(t, "Robin", truncate("Robin", 0))
}

func TestIdentifyValidationAndErrors(t *testing.T) {
	ctx := context.Background()
	image := &Upload{Data: []byte{1}, Filename: "bird.jpg", ContentType: "image/jpeg"}

	svc := NewService(Deps{})
	_, err := svc.Identify(ctx, 1, IdentifyRequest{})
	var fe *common.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields, "image")

	id := &fakeIdentifier{err: common.Upstream("gemini", ai.ErrNotIdentified)}
	svc = NewService(Deps{Images: id, ImageProvider: ai.ProviderGemini})
	_, err = svc.Identify(ctx, 1, IdentifyRequest{Image: image})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "no bird could be identified", fe.Fields["image"])

	sound := &fakeIdentifier{err: birdnet.ErrUnsupportedAudio}
	svc = NewService(Deps{Sounds: sound, SoundProvider: ai.ProviderBirdNET})
	_, err = svc.Identify(ctx, 1, IdentifyRequest{Sound: &Upload{Data: []byte{1}, Filename: "a.mp3"}})
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields, "sound")

	sound = &fakeIdentifier{err: errors.New("interpreter crashed")}
	svc = NewService(Deps{Sounds: sound, SoundProvider: ai.ProviderBirdNET})
	_, err = svc.Identify(ctx, 1, IdentifyRequest{Sound: &Upload{Data: []byte{1}, Filename: "a.wav"}})
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestEnhance(t *testing.T) {
	svc := NewService(Deps{})
	_, err := svc.Enhance(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrInvalidParameters)

	_, err = svc.Enhance(context.Background(), &Upload{Data: []byte{1}, Filename: "x.jpg"})
	assert.ErrorIs(t, err, common.ErrUpstream)

	svc = NewService(Deps{Media: &recordingStore{}})
	resp, err := svc.Enhance(context.Background(), &Upload{Data: []byte{1}, Filename: "x.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/enhanced/x.jpg", resp.EnhancedImageURL)
}

// ============================================================================
// С базой данных
// ============================================================================

func TestIdentifyCreatesBirdOnceAndLogsActivity(t *testing.T) {
	pool := testutil.NewPostgres(t)
	ctx := context.Background()
	userID := testutil.CreateUser(t, pool, "identify@example.com")

	feed := activity.NewService(activity.NewRepository(pool))
	store := &recordingStore{}
	id := &fakeIdentifier{result: &ai.Identification{
		Species:        "Blue Jay",
		ScientificName: "Cyanocitta cristata",
		Confidence:     91,
		Raw:            []byte(`{"identified_species":"Blue Jay"}`),
	}}
	svc := NewService(Deps{
		DB: pool, Repo: NewRepository(pool), Feed: feed,
		Images: id, Media: store, ImageProvider: ai.ProviderGemini,
	})

	lat, lon := 40.7, -74.0
	rec, err := svc.Identify(ctx, userID, IdentifyRequest{
		Image:        &Upload{Data: []byte{0xff}, Filename: "jay.jpg", ContentType: "image/jpeg"},
		Latitude:     &lat,
		Longitude:    &lon,
		LocationName: "Central Park",
	})
	require.NoError(t, err)
	require.NotNil(t, rec.BirdID)
	assert.Equal(t, "https://cdn.test/jay.jpg", rec.ImageURL)
	assert.Equal(t, ai.ProviderGemini, rec.Provider)
	assert.Equal(t, RarityC, rec.Bird.Rarity)
	assert.Equal(t, "DD", rec.Bird.ConservationStatus)
	assert.Equal(t, []media.Kind{media.KindImage}, store.uploads)

	// Тот же вид в другом регистре не создаёт дубликат
	id.result = &ai.Identification{Species: "blue jay", Confidence: 60}
	again, err := svc.Identify(ctx, userID, IdentifyRequest{Image: &Upload{Data: []byte{1}, Filename: "b.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, *rec.BirdID, *again.BirdID)

	list, err := svc.Identifications(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, again.ID, list[0].ID)
	assert.Equal(t, "Blue Jay", list[1].Bird.Name)
	assert.JSONEq(t, `{"identified_species":"Blue Jay"}`, string(list[1].AIResponse))

	feedEntries, err := feed.All(ctx, userID)
	require.NoError(t, err)
	require.Len(t, feedEntries, 2)
	assert.Equal(t, activity.TypeIdentification, feedEntries[1].Type)
	assert.Equal(t, "Central Park", feedEntries[1].LocationName)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM birds`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestDetailsEnrichment(t *testing.T) {
	pool := testutil.NewPostgres(t)
	ctx := context.Background()
	birdID := testutil.CreateBird(t, pool, "Northern Cardinal", RarityB)

	details := &fakeDetails{err: errors.New("quota exceeded")}
	svc := NewService(Deps{DB: pool, Repo: NewRepository(pool), Enricher: details})

	// Сбой: отдаём то, что есть, и не повторяем
	d, err := svc.Details(ctx, birdID)
	require.NoError(t, err)
	assert.Empty(t, d.Description)
	assert.NotNil(t, d.Images)
	assert.NotNil(t, d.SimilarBirds)
	_, err = svc.Details(ctx, birdID)
	require.NoError(t, err)
	assert.Equal(t, 1, details.calls)

	// Новый сервис без кеша неудач: карточка дополняется и сохраняется
	details = &fakeDetails{details: &ai.Details{Description: "Red songbird", Habitat: "Woodlands"}}
	svc = NewService(Deps{DB: pool, Repo: NewRepository(pool), Enricher: details})
	d, err = svc.Details(ctx, birdID)
	require.NoError(t, err)
	assert.Equal(t, "Red songbird", d.Description)

	stored, err := NewRepository(pool).Get(ctx, birdID)
	require.NoError(t, err)
	assert.Equal(t, "Woodlands", stored.Habitat)

	// Заполненная карточка больше не обогащается
	_, err = svc.Details(ctx, birdID)
	require.NoError(t, err)
	assert.Equal(t, 1, details.calls)

	_, err = svc.Details(ctx, 999999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListFilterAndOrder(t *testing.T) {
	pool := testutil.NewPostgres(t)
	ctx := context.Background()
	testutil.CreateBird(t, pool, "Snowy Owl", RarityS)
	testutil.CreateBird(t, pool, "Barn Owl", RarityB)
	testutil.CreateBird(t, pool, "House Sparrow", RarityC)

	svc := NewService(Deps{Repo: NewRepository(pool)})

	owls, err := svc.List(ctx, ListFilter{Query: "owl", Order: OrderName})
	require.NoError(t, err)
	require.Len(t, owls, 2)
	assert.Equal(t, "Barn Owl", owls[0].Name)

	rare, err := svc.List(ctx, ListFilter{Rarity: RarityS})
	require.NoError(t, err)
	require.Len(t, rare, 1)
	assert.Equal(t, "Snowy Owl", rare[0].Name)

	byRarity, err := svc.List(ctx, ListFilter{Order: OrderRarity})
	require.NoError(t, err)
	require.Len(t, byRarity, 3)
	assert.Equal(t, []string{"S", "B", "C"}, []string{byRarity[0].Rarity, byRarity[1].Rarity, byRarity[2].Rarity})

	newest, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, "House Sparrow", newest[0].Name)

	none, err := svc.List(ctx, ListFilter{Query: "100%"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
