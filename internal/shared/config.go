package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	// Scraping
	FrequencyHours int
	ReviewLimit    int
	FetchTimeout   int
	MaxRedirects   int
	FetchRPS       int
	InsecureTLS    bool

	// Scheduler / queue
	Workers        int
	RetryCount     int
	RetryDelay     time.Duration
	AlertThreshold int
	RunInterval    time.Duration

	CacheTTL time.Duration
}

func Load() Config {
	// .env is a local-dev convenience; absence is fine.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/trustpilot?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),

		FrequencyHours: atoi("SCRAPING_FREQUENCY_HOURS", 24),
		ReviewLimit:    atoi("REVIEW_LIMIT", 5),
		FetchTimeout:   atoi("FETCH_TIMEOUT_SECONDS", 30),
		MaxRedirects:   atoi("FETCH_MAX_REDIRECTS", 10),
		FetchRPS:       atoi("FETCH_RPS", 1),
		InsecureTLS:    env("FETCH_INSECURE_TLS", "true") == "true",

		Workers:        atoi("SCRAPE_WORKERS", 4),
		RetryCount:     atoi("TASK_RETRY_COUNT", 3),
		RetryDelay:     time.Duration(atoi("TASK_RETRY_DELAY_SECONDS", 300)) * time.Second,
		AlertThreshold: atoi("FAILURE_ALERT_THRESHOLD", 3),
		RunInterval:    time.Duration(atoi("RUN_INTERVAL_SECONDS", 3600)) * time.Second,

		CacheTTL: time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
	if c.InsecureTLS {
		log.Warn().Msg("FETCH_INSECURE_TLS=true: certificate verification against the target site is off")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
