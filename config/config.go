package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Defaults for case-creation throttling and the target response window
const (
	DefaultCaseRateLimit  = 3
	DefaultCaseRateWindow = 60 * time.Second
	DefaultResponseWindow = 7 * 24 * time.Hour
)

// Config holds the project config values
type Config struct {
	URL            string
	DatabaseName   string
	BaseURL        string
	Port           string
	CaseRateLimit  int64
	CaseRateWindow time.Duration
	ResponseWindow time.Duration
}

// New sets up all config related services
func New() *Config {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	logger, err := setLogger(os.Getenv("APP_ENV"))
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:            os.Getenv("DB_URI"),
		DatabaseName:   os.Getenv("DB_NAME"),
		BaseURL:        os.Getenv("BASE_URL"),
		Port:           os.Getenv("PORT"),
		CaseRateLimit:  envInt64("CASE_RATE_LIMIT", DefaultCaseRateLimit),
		CaseRateWindow: envDurationMS("CASE_RATE_WINDOW_MS", DefaultCaseRateWindow),
		ResponseWindow: envDurationHours("RESPONSE_WINDOW_HOURS", DefaultResponseWindow),
	}
}

// setLogger builds the zap logger for the given APP_ENV value
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		zap.S().Warnw("invalid numeric config value, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func envDurationMS(key string, fallback time.Duration) time.Duration {
	n := envInt64(key, int64(fallback/time.Millisecond))
	return time.Duration(n) * time.Millisecond
}

func envDurationHours(key string, fallback time.Duration) time.Duration {
	n := envInt64(key, int64(fallback/time.Hour))
	return time.Duration(n) * time.Hour
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}
