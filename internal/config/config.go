// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/unisearch/internal/model"
)

// ProviderConfig は1プロバイダー分のOAuthクライアント設定。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Validate はクライアント設定が揃っているかを検証する。
// 不足がある場合はmodel.ErrConfigurationをラップしたエラーを返す。
func (p ProviderConfig) Validate(provider model.Provider) error {
	var missing []string
	if p.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if p.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if p.RedirectURL == "" {
		missing = append(missing, "redirect_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s is missing %v", model.ErrConfiguration, provider, missing)
	}
	return nil
}

// Configured は全項目が設定されているかを返す。
func (p ProviderConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.RedirectURL != ""
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string
	// 1リクエストで使う接続はセッション照会と認可情報の読み出しのみ
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Integrations
	Slack       ProviderConfig
	Notion      ProviderConfig
	GoogleDrive ProviderConfig

	NotionAPIVersion string

	// Session
	SessionSecret          string
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Rate Limit（ログイン・サインアップ、req/min/IP）
	RateLimitLogin int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Provider は指定プロバイダーのクライアント設定を返す。
func (c *Config) Provider(p model.Provider) (ProviderConfig, bool) {
	switch p {
	case model.ProviderSlack:
		return c.Slack, true
	case model.ProviderNotion:
		return c.Notion, true
	case model.ProviderGoogleDrive:
		return c.GoogleDrive, true
	default:
		return ProviderConfig{}, false
	}
}

// LoadDotEnv は指定パスの.envファイルを環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// プロバイダー設定は任意で、不足は初回利用時にProviderConfig.Validateで検出する。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("POSTGRES_URL")
	}
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.Slack = loadProvider("SLACK")
	cfg.Notion = loadProvider("NOTION")
	cfg.GoogleDrive = loadProvider("GOOGLE")

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.NotionAPIVersion = getEnvString("NOTION_API_VERSION", "2022-06-28")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 7*86400)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", getEnvString("PORT", "8080"))
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// loadProvider は <PREFIX>_CLIENT_ID / _CLIENT_SECRET / _REDIRECT_URL を読み込む。
// _REDIRECT_URI も互換のため受け付ける。
func loadProvider(prefix string) ProviderConfig {
	return ProviderConfig{
		ClientID:     os.Getenv(prefix + "_CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
		RedirectURL:  getEnvString(prefix+"_REDIRECT_URL", os.Getenv(prefix+"_REDIRECT_URI")),
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
