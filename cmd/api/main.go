package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "trustpilot_fetcher/internal/adapters/http_server"
	"trustpilot_fetcher/internal/adapters/observability"
	"trustpilot_fetcher/internal/adapters/queue"
	redisad "trustpilot_fetcher/internal/adapters/redis"
	"trustpilot_fetcher/internal/app"
	"trustpilot_fetcher/internal/scraper"
	"trustpilot_fetcher/internal/shared"
	mysqlrepo "trustpilot_fetcher/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger("api", cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
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
	q := app.NewQueryService(repo, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, B: biz, FrequencyHours: cfg.FrequencyHours})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
