// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры;
// перед этим, если рядом лежит .env, он подгружается через godotenv.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Провайдеры распознавания
const (
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderBirdNET     = "birdnet"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPMaxInflight  int           `envconfig:"HTTP_MAX_INFLIGHT" default:"256"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	CORSOriginsRaw   string        `envconfig:"CORS_ORIGINS" default:"*"`
	CORSOrigins      []string      `envconfig:"-"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"birdwatch"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"birdwatch"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Часовой пояс, в котором считаются календарные дни стриков и cron
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Auth ---
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTTL  time.Duration `envconfig:"JWT_ACCESS_TTL" default:"30m"`
	JWTRefreshTTL time.Duration `envconfig:"JWT_REFRESH_TTL" default:"168h"`
	OTPTTL        time.Duration `envconfig:"OTP_TTL" default:"10m"`
	// Блокировка входа: LOGIN_MAX_ATTEMPTS неудач за LOGIN_LOCKOUT_WINDOW
	LoginMaxAttempts   int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"5"`
	LoginLockoutWindow time.Duration `envconfig:"LOGIN_LOCKOUT_WINDOW" default:"15m"`
	GoogleClientID     string        `envconfig:"GOOGLE_CLIENT_ID"`
	AppleClientID      string        `envconfig:"APPLE_CLIENT_ID"`

	// --- SMTP (OTP) ---
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"no-reply@birdwatch.app"`

	// --- AI ---
	GeminiAPIKey     string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel      string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	OpenAIAPIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel      string        `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	HuggingFaceToken string        `envconfig:"HUGGINGFACE_TOKEN"`
	HuggingFaceModel string        `envconfig:"HUGGINGFACE_MODEL" default:"dennisjooo/Birds-Classifier-EfficientNetB2"`
	ImageIDProvider  string        `envconfig:"IMAGE_ID_PROVIDER" default:"gemini"`
	SoundIDProvider  string        `envconfig:"SOUND_ID_PROVIDER" default:"birdnet"`
	AIRequestTimeout time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"45s"`
	MaxUploadBytes   int64         `envconfig:"MAX_UPLOAD_BYTES" default:"20971520"`

	// --- BirdNET ---
	BirdNETModelPath   string  `envconfig:"BIRDNET_MODEL_PATH" default:"models/BirdNET_6K_GLOBAL_MODEL.tflite"`
	BirdNETLabelsPath  string  `envconfig:"BIRDNET_LABELS_PATH" default:"models/labels.txt"`
	BirdNETThreads     int     `envconfig:"BIRDNET_THREADS" default:"2"`
	BirdNETSensitivity float64 `envconfig:"BIRDNET_SENSITIVITY" default:"1.0"`

	// --- Media ---
	CloudinaryURL string `envconfig:"CLOUDINARY_URL"`

	// --- Stripe ---
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	// --- Telegram (уведомления модераторам) ---
	TelegramBotToken         string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramModeratorsChatID int64  `envconfig:"TELEGRAM_MODERATORS_CHAT_ID"`

	// --- Sentry ---
	SentryDSN string `envconfig:"SENTRY_DSN"`

	// --- Rate Limiting ---
	// Лимит на дорогие AI-эндпоинты (на пользователя)
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	// Лимит на /api/auth (на IP, в минуту)
	AuthRateLimit int `envconfig:"AUTH_RATE_LIMIT" default:"20"`

	// --- Feature Flags ---
	FeatureAIEnrichmentEnabled   bool `envconfig:"FEATURE_AI_ENRICHMENT_ENABLED" default:"true"`
	FeatureTelegramAlertsEnabled bool `envconfig:"FEATURE_TELEGRAM_ALERTS_ENABLED" default:"false"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsProduction сообщает, запущен ли сервис в продакшене.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET должен быть не короче 32 символов")
	}
	if c.HTTPMaxInflight <= 0 {
		return fmt.Errorf("HTTP_MAX_INFLIGHT должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= c.JWTAccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL должен быть больше JWT_ACCESS_TTL")
	}
	switch c.ImageIDProvider {
	case ProviderGemini, ProviderHuggingFace:
	default:
		return fmt.Errorf("IMAGE_ID_PROVIDER: неизвестный провайдер %q", c.ImageIDProvider)
	}
	switch c.SoundIDProvider {
	case ProviderBirdNET, ProviderOpenAI:
	default:
		return fmt.Errorf("SOUND_ID_PROVIDER: неизвестный провайдер %q", c.SoundIDProvider)
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW должны быть > 0")
	}
	if c.FeatureTelegramAlertsEnabled && (c.TelegramBotToken == "" || c.TelegramModeratorsChatID == 0) {
		return fmt.Errorf("для FEATURE_TELEGRAM_ALERTS_ENABLED нужны TELEGRAM_BOT_TOKEN и TELEGRAM_MODERATORS_CHAT_ID")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("не удалось прочитать .env: %w", err)
	}
	return Process()
}

// Process заполняет Config только из окружения, без .env.
func Process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cfg.CORSOrigins = parseCSV(cfg.CORSOriginsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
