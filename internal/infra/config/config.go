package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL        string
	DatabaseServiceURL string // privileged writes; defaults to DatabaseURL
	StorageBackend     string
	StrictIdempotency  bool

	LogLevel    string
	Environment string

	ScheduleTimezone string
	Location         *time.Location

	ReminderInterval     time.Duration
	ReminderMisfireGrace time.Duration
	ReminderCoalesce     bool
	ReminderAllowOverlap bool
	ReminderTickTimeout  time.Duration
	ReminderDedupTTL     time.Duration

	EmailFrom      string
	EmailFromName  string
	SendGridAPIKey string // empty means reminders are written to the log instead

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MQURL       string
	MetricsAddr string

	TelegramToken   string // empty disables the admin bot
	AdminTelegramID int64
}

// settings resolves a key from the process environment first, then the YAML file.
type settings map[string]string

func (s settings) get(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(s[key])
}

func (s settings) getDefault(key, def string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return def
}

func (s settings) duration(key string, def time.Duration) (time.Duration, error) {
	v := s.get(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func (s settings) boolean(key string, def bool) (bool, error) {
	v := s.get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// loadFile reads a flat YAML mapping of the same keys the environment uses.
func loadFile(path string) (settings, error) {
	out := settings{}
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// Load reads configuration from environment variables, a .env file and an optional
// YAML file named by CONFIG_FILE. Environment values win over the file.
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	s, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{}

	cfg.StorageBackend = strings.ToLower(s.getDefault("STORAGE_BACKEND", BackendPostgres))
	if cfg.StorageBackend != BackendPostgres && cfg.StorageBackend != BackendMemory {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: use postgres or memory", cfg.StorageBackend)
	}

	cfg.DatabaseURL = s.get("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageBackend == BackendPostgres {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	cfg.DatabaseServiceURL = s.getDefault("DATABASE_SERVICE_URL", cfg.DatabaseURL)

	if cfg.StrictIdempotency, err = s.boolean("STRICT_IDEMPOTENCY", false); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(s.getDefault("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(s.getDefault("ENVIRONMENT", "development"))

	cfg.ScheduleTimezone = s.getDefault("SCHEDULE_TIMEZONE", "Asia/Kolkata")
	cfg.Location, err = time.LoadLocation(cfg.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE: %w", err)
	}

	if cfg.ReminderInterval, err = s.duration("REMINDER_INTERVAL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReminderMisfireGrace, err = s.duration("REMINDER_MISFIRE_GRACE", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReminderCoalesce, err = s.boolean("REMINDER_COALESCE", true); err != nil {
		return nil, err
	}
	if cfg.ReminderAllowOverlap, err = s.boolean("REMINDER_ALLOW_OVERLAP", false); err != nil {
		return nil, err
	}
	if cfg.ReminderTickTimeout, err = s.duration("REMINDER_TICK_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReminderDedupTTL, err = s.duration("REMINDER_DEDUP_TTL", 2*time.Hour); err != nil {
		return nil, err
	}

	cfg.EmailFrom = s.get("EMAIL_FROM")
	cfg.EmailFromName = s.getDefault("EMAIL_FROM_NAME", "Learning Observer")
	cfg.SendGridAPIKey = s.get("SENDGRID_API_KEY")
	if cfg.SendGridAPIKey != "" && cfg.EmailFrom == "" {
		return nil, fmt.Errorf("EMAIL_FROM is not set")
	}

	cfg.RedisAddr = s.get("REDIS_ADDR")
	cfg.RedisPassword = s.get("REDIS_PASSWORD")
	if v := s.get("REDIS_DB"); v != "" {
		if cfg.RedisDB, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
	}

	cfg.MQURL = s.get("MQ_URL")
	cfg.MetricsAddr = s.getDefault("METRICS_ADDR", ":9090")

	cfg.TelegramToken = s.get("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := s.get("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	return cfg, nil
}
