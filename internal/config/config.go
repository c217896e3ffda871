// Package config reads service settings from the environment through
// viper. Call godotenv.Load before Load to pick up a local .env file.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	DefaultHTTPAddr  = ":8080"
	DefaultRedisAddr = "localhost:6380"
	DefaultIssuer    = "complaintdesk"
	DefaultTokenTTL  = 24 * time.Hour

	NotifierLog      = "log"
	NotifierHTTP     = "http"
	NotifierTelegram = "telegram"
)

type Config struct {
	HTTPAddr string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	Notifier         string
	NotifyURL        string
	NotifyAPIKey     string
	TelegramBotToken string
	NotifyLang       string
	ComplaintLinkURL string

	ClosedTerminal bool
	LogLevel       slog.Level
}

// New returns a viper instance bound to the process environment with every
// default set. Keys are the lower-case environment variable names.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("http_addr", DefaultHTTPAddr)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_user", "user")
	v.SetDefault("db_password", "password")
	v.SetDefault("db_name", "complaintdesk")
	v.SetDefault("db_port", "5432")
	v.SetDefault("redis_addr", DefaultRedisAddr)
	v.SetDefault("redis_db", 0)
	v.SetDefault("jwt_issuer", DefaultIssuer)
	v.SetDefault("token_ttl", DefaultTokenTTL)
	v.SetDefault("notifier", NotifierLog)
	v.SetDefault("notify_lang", "en")
	v.SetDefault("closed_terminal", false)
	v.SetDefault("log_level", "info")

	// Keys without a default still have to be known to AutomaticEnv.
	for _, key := range []string{"database_dsn", "redis_password", "jwt_secret",
		"notify_url", "notify_api_key", "telegram_bot_token", "complaint_link_url"} {
		_ = v.BindEnv(key)
	}
	return v
}

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	return FromViper(New())
}

// FromViper builds a Config from v. Malformed numbers, booleans, durations
// and log levels are errors rather than silent zero values.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		HTTPAddr:         v.GetString("http_addr"),
		DatabaseDSN:      v.GetString("database_dsn"),
		RedisAddr:        v.GetString("redis_addr"),
		RedisPassword:    v.GetString("redis_password"),
		JWTSecret:        v.GetString("jwt_secret"),
		JWTIssuer:        v.GetString("jwt_issuer"),
		Notifier:         strings.ToLower(v.GetString("notifier")),
		NotifyURL:        v.GetString("notify_url"),
		NotifyAPIKey:     v.GetString("notify_api_key"),
		TelegramBotToken: v.GetString("telegram_bot_token"),
		NotifyLang:       v.GetString("notify_lang"),
		ComplaintLinkURL: v.GetString("complaint_link_url"),
	}
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			v.GetString("db_host"),
			v.GetString("db_user"),
			v.GetString("db_password"),
			v.GetString("db_name"),
			v.GetString("db_port"),
		)
	}

	var err error
	if c.RedisDB, err = cast.ToIntE(v.Get("redis_db")); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	if c.TokenTTL, err = cast.ToDurationE(v.Get("token_ttl")); err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	if c.ClosedTerminal, err = cast.ToBoolE(v.Get("closed_terminal")); err != nil {
		return nil, fmt.Errorf("CLOSED_TERMINAL: %w", err)
	}
	if err := c.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch c.Notifier {
	case NotifierLog:
	case NotifierHTTP:
		if c.NotifyURL == "" {
			return nil, fmt.Errorf("NOTIFIER=http requires NOTIFY_URL")
		}
	case NotifierTelegram:
		if c.TelegramBotToken == "" {
			return nil, fmt.Errorf("NOTIFIER=telegram requires TELEGRAM_BOT_TOKEN")
		}
	default:
		return nil, fmt.Errorf("NOTIFIER: unknown notifier %q", c.Notifier)
	}
	return c, nil
}
