package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Generation GenerationConfig
	Events     EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig carries the engine's business tunables.
type SchedulingConfig struct {
	// MakeupWindowDays bounds how far after its origin a makeup session may
	// be booked.
	MakeupWindowDays int
	// HolidayCacheTTL controls the redis-cached holiday date set.
	HolidayCacheTTL time.Duration
}

// GenerationConfig governs the batch generation driver.
type GenerationConfig struct {
	Enabled bool
	Workers int
	// Interval between batch-driver sweeps over generation-eligible
	// enrollments.
	Interval time.Duration
	// GracePeriodDays delays follow-up generation after the most recent
	// attended lesson. Scheduling policy, not a generator invariant.
	GracePeriodDays int
}

// EventsConfig configures the outbound session event channel.
type EventsConfig struct {
	Enabled bool
	Channel string
}

// Load reads configuration from the environment with sane defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "tutor_center")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAKEUP_WINDOW_DAYS", 60)
	v.SetDefault("HOLIDAY_CACHE_TTL", "10m")

	v.SetDefault("GENERATION_ENABLED", true)
	v.SetDefault("GENERATION_WORKERS", 2)
	v.SetDefault("GENERATION_GRACE_PERIOD_DAYS", 3)
	v.SetDefault("GENERATION_INTERVAL", "24h")

	v.SetDefault("EVENTS_ENABLED", true)
	v.SetDefault("EVENTS_CHANNEL", "session.events")

	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Scheduling: SchedulingConfig{
			MakeupWindowDays: v.GetInt("MAKEUP_WINDOW_DAYS"),
			HolidayCacheTTL:  v.GetDuration("HOLIDAY_CACHE_TTL"),
		},
		Generation: GenerationConfig{
			Enabled:         v.GetBool("GENERATION_ENABLED"),
			Workers:         v.GetInt("GENERATION_WORKERS"),
			Interval:        v.GetDuration("GENERATION_INTERVAL"),
			GracePeriodDays: v.GetInt("GENERATION_GRACE_PERIOD_DAYS"),
		},
		Events: EventsConfig{
			Enabled: v.GetBool("EVENTS_ENABLED"),
			Channel: v.GetString("EVENTS_CHANNEL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return errors.New("ENV must be development or production")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("PORT must be a valid TCP port")
	}
	if c.Scheduling.MakeupWindowDays <= 0 {
		return errors.New("MAKEUP_WINDOW_DAYS must be positive")
	}
	if c.Generation.Workers <= 0 {
		return errors.New("GENERATION_WORKERS must be positive")
	}
	if c.Env == EnvProduction && c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
