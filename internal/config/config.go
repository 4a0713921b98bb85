package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"story-server/pkg/logger"
)

// Config хранит всю конфигурацию сервиса.
type Config struct {
	AppEnv    string `env:"APP_ENV" env-default:"development"`
	Logger    logger.Config
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Auth      AuthConfig
	Firebase  FirebaseConfig
	Storage   StorageConfig
	Image     ImageConfig
	Speech    SpeechConfig
	Video     VideoConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
}

// ServerConfig настройки HTTP сервера.
type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
}

// DatabaseConfig настройки PostgreSQL.
type DatabaseConfig struct {
	Host           string `env:"DB_HOST" env-default:"localhost"`
	Port           int    `env:"DB_PORT" env-default:"5432"`
	User           string `env:"DB_USER" env-default:"postgres"`
	Password       string `env:"DB_PASSWORD" env-default:""`
	Name           string `env:"DB_NAME" env-default:"stories"`
	SSLMode        string `env:"DB_SSL_MODE" env-default:"disable"`
	MaxConnections int32  `env:"DB_MAX_CONNECTIONS" env-default:"10"`
	AutoMigrate    bool   `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// DSN собирает строку подключения для pgx.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig используется только если RATE_LIMIT_STORE=redis.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// RabbitMQConfig. Пустой URL отключает публикацию событий.
type RabbitMQConfig struct {
	URL      string `env:"RABBITMQ_URL" env-default:""`
	Exchange string `env:"RABBITMQ_STORY_EXCHANGE" env-default:"story_events"`
}

// AuthConfig описывает, какие верификаторы токенов включены.
type AuthConfig struct {
	// Provider: firebase, jwt или both (firebase с fallback на jwt).
	Provider  string `env:"AUTH_PROVIDER" env-default:"firebase"`
	JWTSecret string `env:"JWT_SECRET" env-default:""`
	JWTIssuer string `env:"JWT_ISSUER" env-default:""`
}

// FirebaseConfig настройки Firebase Admin SDK.
type FirebaseConfig struct {
	ProjectID       string `env:"FIREBASE_PROJECT_ID" env-default:""`
	CredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE" env-default:""`
	StorageBucket   string `env:"FIREBASE_STORAGE_BUCKET" env-default:""`
}

// StorageConfig выбирает хранилище артефактов.
type StorageConfig struct {
	Backend       string        `env:"STORAGE_BACKEND" env-default:"firebase"` // firebase или local
	LocalDir      string        `env:"STORAGE_LOCAL_DIR" env-default:"./media"`
	PublicBaseURL string        `env:"STORAGE_PUBLIC_BASE_URL" env-default:"http://localhost:8080/media"`
	UploadTimeout time.Duration `env:"STORAGE_UPLOAD_TIMEOUT" env-default:"60s"`
}

// ImageConfig настройки генерации изображений (OpenAI-совместимый API Together.ai).
type ImageConfig struct {
	APIKey      string        `env:"TOGETHER_API_KEY" env-default:""`
	BaseURL     string        `env:"IMAGE_API_BASE_URL" env-default:"https://api.together.xyz/v1"`
	Model       string        `env:"IMAGE_MODEL" env-default:"black-forest-labs/FLUX.1-schnell"`
	Size        string        `env:"IMAGE_SIZE" env-default:"1024x768"`
	StyleSuffix string        `env:"IMAGE_PROMPT_STYLE_SUFFIX" env-default:", digital art, highly detailed, cinematic lighting, 4k quality"`
	Timeout     time.Duration `env:"IMAGE_TIMEOUT" env-default:"90s"`
}

// SpeechConfig настройки озвучки.
type SpeechConfig struct {
	BaseURL  string        `env:"TTS_BASE_URL" env-default:"https://translate.google.com/translate_tts"`
	Language string        `env:"TTS_LANGUAGE" env-default:"en"`
	Timeout  time.Duration `env:"TTS_TIMEOUT" env-default:"60s"`
}

// VideoConfig настройки сборки видео.
type VideoConfig struct {
	FFmpegPath  string        `env:"FFMPEG_PATH" env-default:"ffmpeg"`
	FFprobePath string        `env:"FFPROBE_PATH" env-default:"ffprobe"`
	Width       int           `env:"VIDEO_WIDTH" env-default:"1920"`
	Height      int           `env:"VIDEO_HEIGHT" env-default:"1080"`
	FPS         int           `env:"VIDEO_FPS" env-default:"30"`
	Timeout     time.Duration `env:"VIDEO_TIMEOUT" env-default:"5m"`
}

// PipelineConfig настройки конвейера генерации.
type PipelineConfig struct {
	MaxActiveJobs    int           `env:"PIPELINE_MAX_ACTIVE_JOBS" env-default:"10"`
	ImageConcurrency int           `env:"PIPELINE_IMAGE_CONCURRENCY" env-default:"3"`
	StageMaxRetries  int           `env:"STAGE_MAX_RETRIES" env-default:"1"`
	RetryBaseDelay   time.Duration `env:"STAGE_RETRY_BASE_DELAY" env-default:"2s"`
	WorkDir          string        `env:"PIPELINE_WORK_DIR" env-default:""`
	TaskRetention    time.Duration `env:"PIPELINE_TASK_RETENTION" env-default:"1h"`
}

// RateLimitConfig лимит на создание историй.
type RateLimitConfig struct {
	Store  string        `env:"RATE_LIMIT_STORE" env-default:"memory"` // memory или redis
	Limit  uint          `env:"RATE_LIMIT_GENERATE" env-default:"5"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// Load читает .env (если есть), переменные окружения и docker secrets.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	if cfg.Database.Password == "" {
		if secret, err := ReadSecret("db_password"); err == nil {
			cfg.Database.Password = secret
		}
	}
	if cfg.Image.APIKey == "" {
		if secret, err := ReadSecret("together_api_key"); err == nil {
			cfg.Image.APIKey = secret
		}
	}
	if cfg.Auth.JWTSecret == "" {
		if secret, err := ReadSecret("jwt_secret"); err == nil {
			cfg.Auth.JWTSecret = secret
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.Provider {
	case "firebase", "jwt", "both":
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}
	if c.Auth.Provider != "firebase" && c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when AUTH_PROVIDER is jwt or both")
	}
	switch c.Storage.Backend {
	case "firebase", "local":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	switch c.RateLimit.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown RATE_LIMIT_STORE %q", c.RateLimit.Store)
	}
	if c.Pipeline.StageMaxRetries < 0 {
		return errors.New("STAGE_MAX_RETRIES must not be negative")
	}
	return nil
}

// UsesFirebase сообщает, нужен ли Firebase App.
func (c *Config) UsesFirebase() bool {
	return c.Auth.Provider != "jwt" || c.Storage.Backend == "firebase"
}

// ReadSecret читает секрет из стандартного пути Docker Secrets.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
