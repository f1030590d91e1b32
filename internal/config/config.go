package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	BotModePolling = "polling"
	BotModeWebhook = "webhook"
)

type Config struct {
	App      AppConfig
	Telegram TelegramConfig
	Sheets   SheetsConfig
	SMTP     SMTPConfig
	Notify   NotifyConfig
}

type AppConfig struct {
	Port           string
	PublicBaseURL  string
	Environment    string
	LogFilePath    string
	SessionBackend string
	RedisURL       string
	NatsURL        string
	EventTopic     string
	OtelEnabled    bool
	OtelEndpoint   string
}

type TelegramConfig struct {
	Token         string
	Mode          string
	WebhookURL    string
	WebhookSecret string
	APIEndpoint   string
	Debug         bool
}

type SheetsConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
	CredentialsJSON string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type NotifyConfig struct {
	SafetyOfficerEmail string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:           getEnv("APP_PORT", "8080"),
			PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
			Environment:    getEnv("GO_ENV", "development"),
			LogFilePath:    getEnv("LOG_FILE_PATH", "logs/nearmiss-bot.log"),
			SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendMemory)),
			RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),
			NatsURL:        getEnv("NATS_URL", ""),
			EventTopic:     getEnv("EVENT_TOPIC", "nearmiss.inbound"),
			OtelEnabled:    getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Telegram: TelegramConfig{
			Token:         getEnv("BOT_TOKEN", ""),
			Mode:          strings.ToLower(getEnv("BOT_MODE", BotModePolling)),
			WebhookURL:    getEnv("WEBHOOK_URL", getEnv("PUBLIC_BASE_URL", "")),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
			APIEndpoint:   getEnv("TELEGRAM_API_ENDPOINT", ""),
			Debug:         getEnvAsBool("TELEGRAM_DEBUG", false),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   getEnv("SHEET_ID", ""),
			Range:           getEnv("SHEET_RANGE", "Sheet1!A:H"),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
			CredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Near-Miss Bot"),
		},
		Notify: NotifyConfig{
			SafetyOfficerEmail: getEnv("SAFETY_OFFICER_EMAIL", ""),
		},
	}
}

// Validate checks the settings needed to talk to Telegram and Google Sheets.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.Sheets.SpreadsheetID == "" {
		errs = append(errs, errors.New("SHEET_ID is required"))
	}
	// media links in the sheet point back at this server
	if c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	}
	switch c.Telegram.Mode {
	case BotModePolling:
	case BotModeWebhook:
		if c.Telegram.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required in webhook mode"))
		}
	default:
		errs = append(errs, errors.New("BOT_MODE must be polling or webhook"))
	}
	switch c.App.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		errs = append(errs, errors.New("SESSION_BACKEND must be memory or redis"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
