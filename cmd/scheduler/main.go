package main

import (
	"context"
	"database/sql"
	"flag"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"trustpilot_fetcher/internal/adapters/observability"
	"trustpilot_fetcher/internal/adapters/queue"
	redisad "trustpilot_fetcher/internal/adapters/redis"
	"trustpilot_fetcher/internal/app"
	"trustpilot_fetcher/internal/scraper"
	"trustpilot_fetcher/internal/shared"
	mysqlrepo "trustpilot_fetcher/internal/storage/mysql"
)

// The scheduler runs the due-check across all known businesses on a
// fixed cadence (hourly by default) and rescrapes whichever are due.
func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger("scheduler", cfg.AppEnv)
	observability.Serve(cfg.MetricsAddr)

	log.Info().
		Int("workers", cfg.Workers).
		Int("frequency_hours", cfg.FrequencyHours).
		Dur("interval", cfg.RunInterval).
		Msg("scheduler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	tasks := queue.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, log.Logger)

	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		TimeoutSeconds: cfg.FetchTimeout,
		MaxRedirects:   cfg.MaxRedirects,
		FetchRPS:       cfg.FetchRPS,
		InsecureTLS:    cfg.InsecureTLS,
	}, log.Logger)
	sc := scraper.New(fetcher, log.Logger)

	biz := app.NewBusinessService(sc, repo, tasks, cache, app.ServiceConfig{
		FrequencyHours: cfg.FrequencyHours,
		ReviewLimit:    cfg.ReviewLimit,
		RetryCount:     cfg.RetryCount,
		RetryDelay:     cfg.RetryDelay,
		AlertThreshold: cfg.AlertThreshold,
	}, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runPass(ctx, biz, cfg.Workers)
	if *once {
		return
	}

	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			runPass(ctx, biz, cfg.Workers)
		}
	}
}

func runPass(ctx context.Context, biz *app.BusinessService, workers int) {
	report := biz.ScrapeAllDue(ctx, workers)
	for _, e := range report.Errors {
		log.Warn().Str("error", e).Msg("scrape-all issue")
	}
}
