package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAPIBaseURL = "https://smart-digital-campus-1.onrender.com"

type Config struct {
	Env            string
	APIBaseURL     string
	HTTPAddr       string
	Storage        string
	StateDir       string
	DeviceID       string
	RedisAddr      string
	RedisPassword  string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Notifier       string
	SendgridAPIKey string
	NotifyEmail    string
	FromEmail      string
	RollbarToken   string

	DevAPIAddr     string
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	DevOTP         string
}

// Load reads the environment, after merging an optional .env file from the
// working directory (or CAMPUS_ENV_FILE). Variables already set win.
func Load() Config {
	envFile := getenv("CAMPUS_ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	return Config{
		Env:            strings.ToLower(getenv("CAMPUS_ENV", "dev")),
		APIBaseURL:     strings.TrimRight(getenv("CAMPUS_API_BASE_URL", DefaultAPIBaseURL), "/"),
		HTTPAddr:       getenv("CAMPUS_HTTP_ADDR", "127.0.0.1:8085"),
		Storage:        strings.ToLower(getenv("CAMPUS_STORAGE", "file")),
		StateDir:       getenv("CAMPUS_STATE_DIR", defaultStateDir()),
		DeviceID:       getenv("CAMPUS_DEVICE_ID", ""),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		PollInterval:   getenvDuration("CAMPUS_POLL_INTERVAL", 30*time.Second),
		RequestTimeout: getenvDuration("CAMPUS_REQUEST_TIMEOUT", 15*time.Second),
		Notifier:       strings.ToLower(getenv("CAMPUS_NOTIFIER", "console")),
		SendgridAPIKey: getenv("SENDGRID_API_KEY", ""),
		NotifyEmail:    getenv("CAMPUS_NOTIFY_EMAIL", ""),
		FromEmail:      getenv("CAMPUS_FROM_EMAIL", "noreply@localhost"),
		RollbarToken:   getenv("ROLLBAR_TOKEN", ""),

		DevAPIAddr:     getenv("DEVAPI_HTTP_ADDR", ":8086"),
		JWTSecret:      getenv("JWT_SECRET", "dev-secret"),
		JWTIssuer:      getenv("JWT_ISSUER", "campus-devapi"),
		AccessTokenTTL: getenvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		DevOTP:         getenv("DEVAPI_OTP", ""),
	}
}

// APIURL is the REST root every endpoint hangs off.
func (c Config) APIURL() string {
	return c.APIBaseURL + "/api"
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "campus-portal")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "campus-portal")
	}
	return filepath.Join(os.TempDir(), "campus-portal")
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
