package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// データ取得バックエンド
const (
	BackendRest     = "rest"
	BackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote service
	SupabaseURL     string
	SupabaseAnonKey string
	RemoteTimeout   time.Duration

	// Data backend
	DataBackend string
	DatabaseURL string

	// Payslip
	PayslipBucket  string
	PayslipMaxSize int64

	// Views
	ReportPageSize  int
	GateWaitTimeout time.Duration

	// Session
	SessionRefreshMargin time.Duration
	BrowserIdleTTL       time.Duration
	BrowserReapInterval  time.Duration

	// Rate Limit（1分あたり）
	RateLimitGeneral    int
	RateLimitAuth       int
	RateLimitNewBrowser int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// TrustProxyHeaders はX-Forwarded-For/X-Real-IPからクライアントIPを復元するか
	TrustProxyHeaders bool
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば事前に読み込むが、既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.DataBackend = strings.ToLower(getEnvString("DATA_BACKEND", BackendRest))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DataBackend == BackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.DataBackend != BackendRest && cfg.DataBackend != BackendPostgres {
		return nil, fmt.Errorf("DATA_BACKEND must be %q or %q: %q", BackendRest, BackendPostgres, cfg.DataBackend)
	}

	// Optional fields with defaults
	cfg.RemoteTimeout = getEnvDuration("REMOTE_TIMEOUT", 10*time.Second)
	cfg.PayslipBucket = getEnvString("PAYSLIP_BUCKET", "payslips")
	cfg.PayslipMaxSize = getEnvInt64("PAYSLIP_MAX_SIZE", 10485760)
	cfg.ReportPageSize = getEnvInt("REPORT_PAGE_SIZE", 10)
	cfg.GateWaitTimeout = getEnvDuration("GATE_WAIT_TIMEOUT", 3*time.Second)
	cfg.SessionRefreshMargin = getEnvDuration("SESSION_REFRESH_MARGIN", 60*time.Second)
	cfg.BrowserIdleTTL = getEnvDuration("BROWSER_IDLE_TTL", 24*time.Hour)
	cfg.BrowserReapInterval = getEnvDuration("BROWSER_REAP_INTERVAL", 10*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.RateLimitNewBrowser = getEnvInt("RATE_LIMIT_NEW_BROWSER", 30)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)

	return cfg, nil
}

// loadDotEnv は.envファイルを環境変数に読み込む。ファイルがない場合は何もしない。
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
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
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
