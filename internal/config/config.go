package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 実行環境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// テナントストアのバックエンド
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMongo    = "mongo"
)

// 開発環境で許可するオリジン（*.lvh.me のフロントエンド開発サーバー）。
const DevelopmentOriginPattern = `^http://.*\.lvh\.me:3000$`

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	AppEnv string

	// Database
	DatabaseURL string

	// Tenant store
	StoreBackend   string
	MongoURI       string
	MongoDatabase  string
	TenantCacheTTL time.Duration

	// Tenant resolution
	TenantMinLabels int

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionMaxAge int

	// Ticket
	TicketSecret string

	// Realtime
	NATSURL            string
	NATSSubjectPrefix  string
	RealtimeSendBuffer int

	// Rate Limit
	RateLimitGeneral    int
	RateLimitTokenIssue int

	// Cleanup
	TokenRetentionDays int
	CleanupInterval    time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOriginPatterns []string
}

// GoogleOAuthEnabled はGoogleログインに必要な設定がそろっているかを返す。
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.TicketSecret = os.Getenv("TICKET_SECRET")
	if cfg.TicketSecret == "" {
		missing = append(missing, "TICKET_SECRET")
	}

	cfg.StoreBackend = getEnvString("STORE_BACKEND", StoreBackendPostgres)
	cfg.MongoURI = os.Getenv("MONGODB_URI")
	if cfg.StoreBackend == StoreBackendMongo && cfg.MongoURI == "" {
		missing = append(missing, "MONGODB_URI")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.StoreBackend != StoreBackendPostgres && cfg.StoreBackend != StoreBackendMongo {
		return nil, fmt.Errorf("unsupported STORE_BACKEND: %q", cfg.StoreBackend)
	}

	cfg.AppEnv = getEnvString("APP_ENV", EnvDevelopment)
	if cfg.AppEnv != EnvDevelopment && cfg.AppEnv != EnvProduction {
		return nil, fmt.Errorf("unsupported APP_ENV: %q", cfg.AppEnv)
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")

	// Optional fields with defaults
	cfg.MongoDatabase = getEnvString("MONGODB_DATABASE", "clinicq")
	cfg.TenantCacheTTL = getEnvDuration("TENANT_CACHE_TTL", 30*time.Second)
	cfg.TenantMinLabels = getEnvInt("TENANT_MIN_LABELS", defaultMinLabels(cfg.AppEnv))
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 43200)
	cfg.NATSURL = getEnvString("NATS_URL", "")
	cfg.NATSSubjectPrefix = getEnvString("NATS_SUBJECT_PREFIX", "clinicq.queue")
	cfg.RealtimeSendBuffer = getEnvInt("REALTIME_SEND_BUFFER", 64)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitTokenIssue = getEnvInt("RATE_LIMIT_TOKEN_ISSUE", 5)
	cfg.TokenRetentionDays = getEnvInt("TOKEN_RETENTION_DAYS", 30)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "5000")
	cfg.BaseURL = getEnvString("BASE_URL", "http://lvh.me:3000")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOriginPatterns = getEnvList("CORS_ALLOWED_ORIGIN_PATTERNS", defaultOriginPatterns(cfg.AppEnv))

	if cfg.TenantMinLabels < 2 {
		return nil, fmt.Errorf("TENANT_MIN_LABELS must be at least 2, got %d", cfg.TenantMinLabels)
	}

	return cfg, nil
}

// defaultMinLabels は環境ごとのテナント解決に必要な最小ラベル数を返す。
// 開発: <tenant>.lvh.me（3ラベル）、本番: <tenant>.<app>.<platform>.<tld>（4ラベル）。
func defaultMinLabels(env string) int {
	if env == EnvProduction {
		return 4
	}
	return 3
}

func defaultOriginPatterns(env string) []string {
	if env == EnvProduction {
		return nil
	}
	return []string{DevelopmentOriginPattern}
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

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
