// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionSecret string
	SessionMaxAge int // 秒

	// Object Storage
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StoragePublicURL string // 公開URL組み立てのベース（例: https://cdn.example.com/story-files）

	// Submission
	MaxAttachmentSize int64 // 添付ファイルのサイズ上限（バイト)

	// Cover image fetch
	CoverFetchTimeout time.Duration
	CoverFetchMaxSize int64

	// Audio generation
	TTSEndpoint         string
	TTSTimeout          time.Duration
	AudioMaxConcurrent  int
	AudioPollInterval   time.Duration
	AudioMaxPerCycle    int

	// Sweep
	SweepGracePeriod time.Duration

	// Rate Limit
	RateLimitGeneral    int // req/min/user
	RateLimitSubmission int // req/min/user

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（未存在は無視）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは開発用。本番では環境変数が直接設定される前提。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.StorageEndpoint = os.Getenv("STORAGE_ENDPOINT")
	if cfg.StorageEndpoint == "" {
		missing = append(missing, "STORAGE_ENDPOINT")
	}

	cfg.StorageAccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	if cfg.StorageAccessKey == "" {
		missing = append(missing, "STORAGE_ACCESS_KEY")
	}

	cfg.StorageSecretKey = os.Getenv("STORAGE_SECRET_KEY")
	if cfg.StorageSecretKey == "" {
		missing = append(missing, "STORAGE_SECRET_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.StorageBucket = getEnvString("STORAGE_BUCKET", "story-files")
	cfg.StorageUseSSL = getEnvBool("STORAGE_USE_SSL", true)
	cfg.StoragePublicURL = getEnvString("STORAGE_PUBLIC_URL", "")
	cfg.MaxAttachmentSize = getEnvInt64("MAX_ATTACHMENT_SIZE", 20*1024*1024)
	cfg.CoverFetchTimeout = getEnvDuration("COVER_FETCH_TIMEOUT", 10*time.Second)
	cfg.CoverFetchMaxSize = getEnvInt64("COVER_FETCH_MAX_SIZE", 5242880)
	cfg.TTSEndpoint = getEnvString("TTS_ENDPOINT", "")
	cfg.TTSTimeout = getEnvDuration("TTS_TIMEOUT", 60*time.Second)
	cfg.AudioMaxConcurrent = getEnvInt("AUDIO_MAX_CONCURRENT", 4)
	cfg.AudioPollInterval = getEnvDuration("AUDIO_POLL_INTERVAL", time.Minute)
	cfg.AudioMaxPerCycle = getEnvInt("AUDIO_MAX_PER_CYCLE", 20)
	cfg.SweepGracePeriod = getEnvDuration("SWEEP_GRACE_PERIOD", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmission = getEnvInt("RATE_LIMIT_SUBMISSION", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
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
	if err != nil {
		return defaultVal
	}
	return d
}
