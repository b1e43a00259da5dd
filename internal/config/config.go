package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the assessment API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	JWTSecret           string
	QuestionCacheTTL    time.Duration
	AutoSaveInterval    time.Duration
	SubmitRateLimit     int
	SubmitRateWindow    time.Duration
	SSEKeepAliveTimeout time.Duration
	EventChannelBase    string
	CORSOrigins         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EXAMIND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Examind API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("question.cache_ttl", "10m")
	v.SetDefault("session.autosave_interval", "30s")
	v.SetDefault("submit.rate_limit", 5)
	v.SetDefault("submit.rate_window", "10s")
	v.SetDefault("sse.keepalive_timeout", "30s")
	v.SetDefault("event.channel_base", "examind")
	v.SetDefault("cors.origins", "*")

	cacheTTL, err := time.ParseDuration(v.GetString("question.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid question cache ttl: %w", err)
	}

	autoSave, err := time.ParseDuration(v.GetString("session.autosave_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid autosave interval: %w", err)
	}

	rateWindow, err := time.ParseDuration(v.GetString("submit.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid submit rate window: %w", err)
	}

	keepAlive, err := time.ParseDuration(v.GetString("sse.keepalive_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sse keepalive timeout: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		QuestionCacheTTL:    cacheTTL,
		AutoSaveInterval:    autoSave,
		SubmitRateLimit:     v.GetInt("submit.rate_limit"),
		SubmitRateWindow:    rateWindow,
		SSEKeepAliveTimeout: keepAlive,
		EventChannelBase:    v.GetString("event.channel_base"),
		CORSOrigins:         v.GetString("cors.origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 30 * time.Second
	}

	if cfg.SubmitRateLimit <= 0 {
		cfg.SubmitRateLimit = 5
	}

	return cfg, nil
}
