// Package birds: service.go содержит бизнес-логику каталога:
// карточки с обогащением от AI, распознавание по фото и звуку, улучшение фото.
package birds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/ai"
	"serotonyl.ru/birdwatch/internal/birdnet"
	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/activity"
	"serotonyl.ru/birdwatch/internal/media"
	"serotonyl.ru/birdwatch/internal/metrics"
)

// EnrichmentRetryAfter: сколько не повторять неудачное обогащение карточки.
const EnrichmentRetryAfter = 10 * time.Minute

// Deps: зависимости сервиса каталога.
type Deps struct {
	DB       postgres.TxBeginner
	Repo     *Repository
	Feed     *activity.Service
	Images   ai.ImageIdentifier
	Sounds   ai.SoundIdentifier
	Enricher ai.DetailsProvider // nil: обогащение выключено
	Media    media.Store
	// Имена провайдеров для метрик и записей распознавания
	ImageProvider string
	SoundProvider string
}

// Service управляет каталогом и распознаванием.
type Service struct {
	Deps
	// Неудачные обогащения по id птицы
	failures *cache.Cache
	now      func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(d Deps) *Service {
	if d.Media == nil {
		d.Media = media.Disabled{}
	}
	return &Service{
		Deps:     d,
		failures: cache.New(EnrichmentRetryAfter, 2*EnrichmentRetryAfter),
		now:      time.Now,
	}
}

// List ищет по каталогу.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Bird, error) {
	return s.Repo.List(ctx, f)
}

// Categories возвращает категории птиц.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.Repo.Categories(ctx)
}

// ============================================================================
// Карточка вида
// ============================================================================

// Details возвращает полную карточку. Если у птицы нет описания или среды обитания,
// карточка дополняется справочными данными от AI. Сбой обогащения не ломает ответ:
// отдаём то, что есть в базе, и не пробуем снова EnrichmentRetryAfter.
func (s *Service) Details(ctx context.Context, id int64) (*Details, error) {
	bird, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if bird.NeedsEnrichment() {
		s.enrich(ctx, bird)
	}

	d := &Details{Bird: *bird}
	if d.Images, err = s.Repo.Images(ctx, id); err != nil {
		return nil, err
	}
	if d.Sounds, err = s.Repo.Sounds(ctx, id); err != nil {
		return nil, err
	}
	if d.SimilarBirds, err = s.Repo.Similar(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) enrich(ctx context.Context, bird *Bird) {
	if s.Enricher == nil {
		return
	}
	key := strconv.FormatInt(bird.ID, 10)
	if _, failed := s.failures.Get(key); failed {
		return
	}

	logger := log.WithFields(log.Fields{"bird_id": bird.ID, "name": bird.Name})

	details, err := s.Enricher.BirdDetails(ctx, bird.Name)
	if err != nil {
		s.failures.SetDefault(key, struct{}{})
		logger.WithError(err).Warn("Не удалось получить справочные данные о виде")
		return
	}

	if !ApplyDetails(bird, details) {
		return
	}
	if err := s.Repo.SaveDetails(ctx, bird); err != nil {
		s.failures.SetDefault(key, struct{}{})
		logger.WithError(err).Error("Не удалось сохранить справочные данные о виде")
		return
	}
	logger.Info("Карточка вида дополнена")
}

// Длины колонок birds
const (
	maxRangeLen  = 50
	maxTaxonLen  = 100
	maxNameLen   = 255
	statusUnsure = "DD"
)

// ApplyDetails переносит справочные данные в пустые поля карточки.
// Заполненные поля не трогаются. Возвращает true, если что-то изменилось.
func ApplyDetails(b *Bird, d *ai.Details) bool {
	changed := false
	fill := func(dst *string, src string, limit int) {
		src = strings.TrimSpace(src)
		if *dst != "" || src == "" {
			return
		}
		*dst = truncate(src, limit)
		changed = true
	}

	fill(&b.ScientificName, d.ScientificName, maxNameLen)
	fill(&b.Description, d.Description, 0)
	fill(&b.WeightRange, d.PhysicalCharacteristics.WeightRange, maxRangeLen)
	fill(&b.WingspanRange, d.PhysicalCharacteristics.WingspanRange, maxRangeLen)
	fill(&b.LengthRange, d.PhysicalCharacteristics.LengthRange, maxRangeLen)
	fill(&b.Order, d.Classification.Order, maxTaxonLen)
	fill(&b.Family, d.Classification.Family, maxTaxonLen)
	fill(&b.Habitat, d.Habitat, 0)
	fill(&b.Behavior, d.Behavior, 0)
	fill(&b.FeedingHabits, d.FeedingHabits, 0)
	fill(&b.BreedingInfo, d.BreedingInfo, 0)
	fill(&b.MigrationPattern, d.MigrationPattern, 0)

	// Статус охраны меняем только с «нет данных» и только на известный код
	status := strings.ToUpper(strings.TrimSpace(d.ConservationStatus))
	if _, known := ConservationStatuses[status]; known &&
		(b.ConservationStatus == "" || b.ConservationStatus == statusUnsure) && status != b.ConservationStatus {
		b.ConservationStatus = status
		changed = true
	}
	return changed
}

// truncate обрезает строку до limit символов (0: без ограничения).
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// ============================================================================
// Распознавание
// ============================================================================

// Identify распознаёт птицу по фото или звуку, находит или создаёт вид в каталоге
// и сохраняет результат в истории пользователя.
func (s *Service) Identify(ctx context.Context, userID int64, req IdentifyRequest) (*Identification, error) {
	if req.Image == nil && req.Sound == nil {
		return nil, common.InvalidField("image", "an image or sound file is required")
	}

	hint := ai.Hint{
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		LocationName: req.LocationName,
		Date:         s.now(),
	}

	var (
		result   *ai.Identification
		err      error
		field    string
		provider string
		record   = &Identification{
			UserID:       userID,
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
			LocationName: req.LocationName,
		}
	)
	if req.Image != nil {
		field, provider = "image", s.ImageProvider
		record.ImageURL = s.store(ctx, req.Image, media.KindImage)
		result, err = s.Images.IdentifyImage(ctx, req.Image.Data, req.Image.ContentType, hint)
	} else {
		field, provider = "sound", s.SoundProvider
		record.SoundURL = s.store(ctx, req.Sound, media.KindAudio)
		result, err = s.Sounds.IdentifySound(ctx, req.Sound.Data, req.Sound.Filename, hint)
	}

	if err != nil {
		return nil, s.identifyError(err, field, provider)
	}
	metrics.Identifications.WithLabelValues(provider, "ok").Inc()

	record.IdentifiedSpecies = truncate(result.Species, maxNameLen)
	record.ScientificName = truncate(result.ScientificName, maxNameLen)
	record.ConfidenceLevel = float64(result.Confidence.Clamp())
	record.Provider = provider
	record.AIResponse = result.Raw

	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		repo := s.Repo.WithTx(tx)
		bird, created, err := repo.GetOrCreate(ctx, record.IdentifiedSpecies, record.ScientificName)
		if err != nil {
			return err
		}
		if created {
			log.WithFields(log.Fields{
				"bird_id": bird.ID,
				"name":    bird.Name,
			}).Info("Новый вид добавлен в каталог по распознаванию")
		}
		summary := bird.Summary()
		record.BirdID = &bird.ID
		record.Bird = &summary

		if err := repo.CreateIdentification(ctx, record); err != nil {
			return err
		}
		return s.Feed.Log(ctx, tx, activity.Entry{
			UserID:       userID,
			Type:         activity.TypeIdentification,
			BirdID:       &bird.ID,
			Description:  fmt.Sprintf("Identified %s", bird.Name),
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
			LocationName: req.LocationName,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"species":    record.IdentifiedSpecies,
		"provider":   provider,
		"confidence": record.ConfidenceLevel,
	}).Info("Птица распознана")
	return record, nil
}

// identifyError переводит ошибку провайдера в ошибку API.
func (s *Service) identifyError(err error, field, provider string) error {
	switch {
	case errors.Is(err, ai.ErrNotIdentified):
		metrics.Identifications.WithLabelValues(provider, "not_identified").Inc()
		return common.InvalidField(field, "no bird could be identified")
	case errors.Is(err, birdnet.ErrUnsupportedAudio):
		metrics.Identifications.WithLabelValues(provider, "bad_input").Inc()
		return common.InvalidField(field, "unsupported audio: a WAV recording of at least 1.5 seconds is required")
	}
	metrics.Identifications.WithLabelValues(provider, "error").Inc()
	if errors.Is(err, common.ErrUpstream) {
		return err
	}
	return common.Upstream(provider, err)
}

// store сохраняет файл в медиахранилище. Сбой хранилища не мешает распознаванию.
func (s *Service) store(ctx context.Context, u *Upload, kind media.Kind) string {
	asset, err := s.Media.Upload(ctx, u.Data, u.Filename, kind, media.FolderIdentifications)
	if err != nil {
		log.WithError(err).WithField("filename", u.Filename).Warn("Не удалось сохранить файл распознавания")
		return ""
	}
	return asset.URL
}

// Identifications возвращает историю распознаваний пользователя.
func (s *Service) Identifications(ctx context.Context, userID int64) ([]*Identification, error) {
	return s.Repo.Identifications(ctx, userID)
}

// Enhance сохраняет фото и возвращает ссылку на улучшенную копию.
func (s *Service) Enhance(ctx context.Context, image *Upload) (*EnhanceResponse, error) {
	if image == nil {
		return nil, common.InvalidField("image", "an image file is required")
	}
	url, err := s.Media.Enhance(ctx, image.Data, image.Filename)
	if err != nil {
		return nil, err
	}
	return &EnhanceResponse{EnhancedImageURL: url}, nil
}
