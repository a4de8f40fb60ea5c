// Package app инициализирует все компоненты приложения.
// app.go: точка сборки: создаёт пул БД, внешние клиенты, репозитории,
// сервисы, обработчики и собирает из них HTTP-роутер и планировщик.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/ai"
	"serotonyl.ru/birdwatch/internal/auth"
	"serotonyl.ru/birdwatch/internal/birdnet"
	"serotonyl.ru/birdwatch/internal/config"
	"serotonyl.ru/birdwatch/internal/db/postgres"
	"serotonyl.ru/birdwatch/internal/features/activity"
	"serotonyl.ru/birdwatch/internal/features/birds"
	"serotonyl.ru/birdwatch/internal/features/collection"
	"serotonyl.ru/birdwatch/internal/features/discover"
	"serotonyl.ru/birdwatch/internal/features/explore"
	"serotonyl.ru/birdwatch/internal/features/nearby"
	"serotonyl.ru/birdwatch/internal/features/streak"
	"serotonyl.ru/birdwatch/internal/features/subscription"
	"serotonyl.ru/birdwatch/internal/features/users"
	"serotonyl.ru/birdwatch/internal/jobs"
	"serotonyl.ru/birdwatch/internal/media"
	"serotonyl.ru/birdwatch/internal/notify"
	"serotonyl.ru/birdwatch/internal/server"
	"serotonyl.ru/birdwatch/internal/server/filters"
	"serotonyl.ru/birdwatch/internal/server/middleware"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *server.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool

	moderators *notify.Moderators // nil: оповещения выключены
	moderation notify.Moderation
	birdnet    *birdnet.Classifier
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", cfg.AppTimezone, err)
	}

	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool, postgres.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	a := &App{DB: pool}
	if err := a.build(ctx, cfg, loc); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, loc *time.Location) error {
	pool := a.DB
	upstreamClient := &http.Client{Timeout: cfg.AIRequestTimeout}

	// === 2. Внешние клиенты ===
	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		return err
	}
	providers, err := a.providers(ctx, cfg, upstreamClient)
	if err != nil {
		return err
	}
	store, err := media.New(cfg.CloudinaryURL)
	if err != nil {
		return fmt.Errorf("ошибка настройки Cloudinary: %w", err)
	}
	google, err := users.NewGoogleVerifier(ctx, cfg.GoogleClientID)
	if err != nil {
		return fmt.Errorf("ошибка настройки Google Sign-In: %w", err)
	}
	apple := users.NewAppleVerifier(cfg.AppleClientID, upstreamClient)

	var notifier nearby.Notifier = nearby.NopNotifier{}
	if cfg.FeatureTelegramAlertsEnabled {
		if a.moderators, err = notify.New(cfg.TelegramBotToken, cfg.TelegramModeratorsChatID); err != nil {
			return err
		}
		notifier = a.moderators
	}

	// === 3. Репозитории ===
	birdRepo := birds.NewRepository(pool)
	articleRepo := discover.NewRepository(pool)

	// === 4. Сервисы ===
	feed := activity.NewService(activity.NewRepository(pool))
	streaks := streak.NewService(streak.NewRepository(pool), loc)
	catalog := birds.NewService(birds.Deps{
		DB:            pool,
		Repo:          birdRepo,
		Feed:          feed,
		Images:        providers.images,
		Sounds:        providers.sounds,
		Enricher:      providers.enricher,
		Media:         store,
		ImageProvider: cfg.ImageIDProvider,
		SoundProvider: cfg.SoundIDProvider,
	})
	collections := collection.NewService(pool, collection.NewRepository(pool), birdRepo, streaks, feed)
	spots := nearby.NewService(pool, nearby.NewRepository(pool), streaks, feed, notifier, loc)
	accounts := users.NewService(users.Deps{
		DB:      pool,
		Repo:    users.NewRepository(pool),
		Tokens:  tokens,
		Google:  google,
		Apple:   apple,
		Mailer:  users.NewMailer(smtpConfig(cfg)),
		Streaks: streaks,
		Stats:   collections,
	}, users.Settings{
		OTPTTL:        cfg.OTPTTL,
		MaxAttempts:   cfg.LoginMaxAttempts,
		LockoutWindow: cfg.LoginLockoutWindow,
	})
	articles := discover.NewService(pool, articleRepo, feed)
	highlights := explore.NewService(birdRepo, articleRepo)
	billing := subscription.NewService(
		subscription.NewRepository(pool),
		newBilling(cfg, upstreamClient),
		cfg.StripeWebhookSecret,
	)
	a.moderation = spots

	// === 5. Обработчики и фильтры ===
	authenticate := middleware.Authenticate(tokens)
	staffOnly := filters.NewStaffFilter(accounts).Middleware

	usersHandler := users.NewHandler(accounts)
	birdsHandler := birds.NewHandler(catalog, middleware.LimitByUser(cfg.RateLimitRequests, cfg.RateLimitWindow), cfg.MaxUploadBytes)
	nearbyHandler := nearby.NewHandler(spots)
	userHandlers := []interface{ Routes(chi.Router) }{
		collection.NewHandler(collections),
		streak.NewHandler(streaks),
		nearbyHandler,
		activity.NewHandler(feed),
		explore.NewHandler(highlights),
	}
	discoverHandler := discover.NewHandler(articles)
	subscriptionHandler := subscription.NewHandler(billing)

	// === 6. Роутер ===
	r := server.NewRouter(server.Options{
		CORSOrigins: cfg.CORSOrigins,
		MaxInflight: cfg.HTTPMaxInflight,
		Health:      pool.Ping,
	})
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.LimitByIP(cfg.AuthRateLimit, time.Minute))
			usersHandler.PublicRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				usersHandler.PrivateRoutes(r)
			})
		})
		r.Route("/birds", func(r chi.Router) {
			r.Use(authenticate)
			birdsHandler.Routes(r)
		})
		r.Route("/user", func(r chi.Router) {
			r.Use(authenticate)
			for _, h := range userHandlers {
				h.Routes(r)
			}
			discoverHandler.Routes(r)
			r.Group(func(r chi.Router) {
				r.Use(staffOnly)
				discoverHandler.StaffRoutes(r)
			})
		})
		r.Route("/moderation", func(r chi.Router) {
			r.Use(authenticate, staffOnly)
			nearbyHandler.ModerationRoutes(r)
		})
		r.Route("/subscription", func(r chi.Router) {
			subscriptionHandler.WebhookRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				subscriptionHandler.Routes(r)
			})
		})
	})
	a.Server = server.New(cfg.HTTPAddr, r, cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout)

	// === 7. Планировщик задач ===
	deps := jobs.Deps{Streaks: streaks, OTPs: accounts, Scores: collections}
	if a.moderators != nil {
		deps.Pending, deps.Digest = spots, a.moderators
	}
	a.Scheduler = jobs.NewScheduler(loc, jobs.Jobs(deps)...)
	return nil
}

// Run запускает HTTP-сервер, планировщик и бота модераторов до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	if a.moderators != nil {
		go a.moderators.Listen(ctx, a.moderation)
	}
	return a.Server.Run(ctx)
}

// Close освобождает ресурсы. Вызывается после Run.
func (a *App) Close() {
	if a.moderators != nil {
		a.moderators.Close()
	}
	if a.birdnet != nil {
		a.birdnet.Close()
	}
	a.DB.Close()
	log.Info("Ресурсы приложения освобождены")
}

// recognizers: выбранные провайдеры распознавания.
type recognizers struct {
	images   ai.ImageIdentifier
	sounds   ai.SoundIdentifier
	enricher ai.DetailsProvider
}

// providers создаёт провайдеров по IMAGE_ID_PROVIDER и SOUND_ID_PROVIDER.
// Gemini нужен и для обогащения карточек, поэтому создаётся, если есть ключ.
func (a *App) providers(ctx context.Context, cfg *config.Config, hc *http.Client) (recognizers, error) {
	var p recognizers

	var gemini *ai.Gemini
	if cfg.GeminiAPIKey != "" {
		g, err := ai.NewGemini(ctx, ai.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel, HTTPClient: hc})
		if err != nil {
			return p, fmt.Errorf("ошибка настройки Gemini: %w", err)
		}
		gemini = g
		if cfg.FeatureAIEnrichmentEnabled {
			p.enricher = gemini
		}
	}

	switch cfg.ImageIDProvider {
	case config.ProviderGemini:
		if gemini == nil {
			return p, fmt.Errorf("IMAGE_ID_PROVIDER=gemini требует GEMINI_API_KEY")
		}
		p.images = gemini
	case config.ProviderHuggingFace:
		p.images = ai.NewHuggingFace(ai.HuggingFaceConfig{
			Token:   cfg.HuggingFaceToken,
			Model:   cfg.HuggingFaceModel,
			Timeout: cfg.AIRequestTimeout,
		})
	}

	switch cfg.SoundIDProvider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return p, fmt.Errorf("SOUND_ID_PROVIDER=openai требует OPENAI_API_KEY")
		}
		p.sounds = ai.NewOpenAI(ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, HTTPClient: hc})
	case config.ProviderBirdNET:
		a.birdnet = birdnet.New(birdnet.Config{
			ModelPath:   cfg.BirdNETModelPath,
			LabelsPath:  cfg.BirdNETLabelsPath,
			Threads:     cfg.BirdNETThreads,
			Sensitivity: cfg.BirdNETSensitivity,
		})
		p.sounds = a.birdnet
	}

	log.WithFields(log.Fields{
		"image":      cfg.ImageIDProvider,
		"sound":      cfg.SoundIDProvider,
		"enrichment": p.enricher != nil,
	}).Info("Провайдеры распознавания выбраны")
	return p, nil
}

func newBilling(cfg *config.Config, hc *http.Client) subscription.Billing {
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY не задан: подписки недоступны")
		return subscription.DisabledBilling{}
	}
	return subscription.NewStripeBilling(cfg.StripeSecretKey, hc)
}

func smtpConfig(cfg *config.Config) users.SMTPConfig {
	return users.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}
