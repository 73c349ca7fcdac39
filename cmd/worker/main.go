package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os/signal"
	"syscall"

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

// The worker drains the task queue. Each task persists a single review:
// one review failing never touches its siblings, and exhausted retries
// land on the dead list for operator attention.
func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger("worker", cfg.AppEnv)
	observability.Serve(cfg.MetricsAddr)

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

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

	w := queue.NewWorker(tasks, log.Logger)
	w.Handle("save_review", func(ctx context.Context, args json.RawMessage) error {
		var p app.SaveReviewArgs
		if err := json.Unmarshal(args, &p); err != nil {
			return err
		}
		return biz.SaveReview(ctx, p)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("worker starting")
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}
