package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret       = "dev_secret"
	devSignedURLSecret = "dev_coverage_secret"
)

var weekdays = map[string]struct{}{
	"MONDAY": {}, "TUESDAY": {}, "WEDNESDAY": {}, "THURSDAY": {},
	"FRIDAY": {}, "SATURDAY": {}, "SUNDAY": {},
}

type Config struct {
	Env       string `validate:"oneof=development staging production test"`
	Port      int    `validate:"min=1,max=65535"`
	APIPrefix string `validate:"startswith=/"`

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Coverage CoverageConfig
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
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CoverageConfig tunes the substitute coverage engine and its surrounding plumbing.
type CoverageConfig struct {
	Enabled             bool
	CacheTTL            time.Duration `validate:"gte=0"`
	SchoolDays          []string      `validate:"min=1"`
	Workers             int           `validate:"min=1,max=64"`
	EmergencyOverride   bool
	ExportDir           string        `validate:"required"`
	SignedURLSecret     string        `validate:"required"`
	SignedURLTTL        time.Duration `validate:"gt=0"`
	NotificationWorkers int           `validate:"min=0,max=32"`
	NotificationRetries int           `validate:"min=0,max=10"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	workers := v.GetInt("COVERAGE_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.Coverage = CoverageConfig{
		Enabled:             v.GetBool("ENABLE_COVERAGE"),
		CacheTTL:            parseDuration(v.GetString("COVERAGE_CACHE_TTL"), 10*time.Minute),
		SchoolDays:          upperAll(splitAndTrim(v.GetString("COVERAGE_SCHOOL_DAYS"))),
		Workers:             workers,
		EmergencyOverride:   v.GetBool("COVERAGE_EMERGENCY_OVERRIDE"),
		ExportDir:           v.GetString("COVERAGE_EXPORT_DIR"),
		SignedURLSecret:     v.GetString("COVERAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:        parseDuration(v.GetString("COVERAGE_SIGNED_URL_TTL"), 24*time.Hour),
		NotificationWorkers: v.GetInt("COVERAGE_NOTIFICATION_WORKERS"),
		NotificationRetries: v.GetInt("COVERAGE_NOTIFICATION_RETRIES"),
	}

	return cfg, nil
}

// Validate rejects settings the service cannot start with. Production also
// refuses the development secrets.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, day := range c.Coverage.SchoolDays {
		if _, ok := weekdays[day]; !ok {
			return fmt.Errorf("invalid config: unknown school day %q", day)
		}
	}
	if c.Env == EnvProduction {
		if c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret {
			return errors.New("invalid config: JWT_SECRET must be set in production")
		}
		if c.Coverage.SignedURLSecret == devSignedURLSecret {
			return errors.New("invalid config: COVERAGE_SIGNED_URL_SECRET must be set in production")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_coverage")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_COVERAGE", true)
	v.SetDefault("COVERAGE_CACHE_TTL", "10m")
	v.SetDefault("COVERAGE_SCHOOL_DAYS", "MONDAY,TUESDAY,WEDNESDAY,THURSDAY,FRIDAY")
	v.SetDefault("COVERAGE_WORKERS", 1)
	v.SetDefault("COVERAGE_EMERGENCY_OVERRIDE", true)
	v.SetDefault("COVERAGE_EXPORT_DIR", "./exports/coverage")
	v.SetDefault("COVERAGE_SIGNED_URL_SECRET", devSignedURLSecret)
	v.SetDefault("COVERAGE_SIGNED_URL_TTL", "24h")
	v.SetDefault("COVERAGE_NOTIFICATION_WORKERS", 2)
	v.SetDefault("COVERAGE_NOTIFICATION_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func upperAll(values []string) []string {
	for i, value := range values {
		values[i] = strings.ToUpper(value)
	}
	return values
}
