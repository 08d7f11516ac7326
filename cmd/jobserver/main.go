package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"workbench/internal/api"
	"workbench/internal/config"
	"workbench/internal/fetch"
	fileutil "workbench/internal/file"
	"workbench/internal/job"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config")
	envPath := flag.String("env", ".env", "optional .env file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatal().Err(err).Msg("failed to load env file")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := fileutil.EnsureDir(cfg.Server.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Server.DataDir).Msg("ensure data dir")
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	jobManager := buildJobManager(baseCtx, cfg.Server)
	router := setupRouter()
	wireAPI(router, jobManager, cfg)

	jobManager.SetBaseContext(baseCtx)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := newHTTPServer(cfg.Server.Port, router, readHeaderTimeout)

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("store", cfg.Server.Store).Msg("job server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()

	gracefulShutdown(srv, baseCancel, jobManager, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	return r
}

func buildJobManager(ctx context.Context, cfg config.ServerConfig) *job.Manager {
	var store job.JobStore
	if cfg.Store == config.StoreSQLite {
		sqliteStore, err := job.NewSQLiteStore(ctx, cfg.DataDir)
		if err != nil {
			log.Fatal().Err(err).Msg("open sqlite store")
		}
		store = sqliteStore
	}

	jm := job.NewManagerWithOptions(job.Options{
		DataDir:           cfg.DataDir,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
		Store:             store,
	})
	jm.UseFetcher(fetch.New(fetch.Options{Binary: cfg.YtDlp.Binary, Format: cfg.YtDlp.Format}).Fetch)

	if err := jm.LoadFromDisk(); err != nil {
		log.Warn().Err(err).Msg("failed to load jobs from store")
	}
	return jm
}

func wireAPI(router *gin.Engine, jm *job.Manager, cfg config.Config) {
	var verifier api.Verifier
	if cfg.Captcha.InsecureSkipVerify {
		log.Warn().Msg("captcha verification disabled: every token is accepted")
		verifier = api.AllowAll{}
	} else {
		verifier = api.NewSiteVerifier(cfg.Captcha.VerifyURL, cfg.Captcha.Secret)
	}

	apiHandler := api.NewAPI(jm, api.Options{
		Verifier:       verifier,
		Passes:         api.NewPassStore(cfg.Captcha.PassTTL),
		MaxURLLength:   cfg.Tool.MaxURLLength,
		RatePerMinute:  cfg.Server.RatePerMinute,
		RateBurst:      cfg.Server.RateBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	apiHandler.RegisterRoutes(router)
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, jm *job.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	done := jm.WaitAll(ctx)
	if !done {
		log.Warn().Msg("background workers did not finish before timeout")
	}
	if err := jm.Close(); err != nil {
		log.Warn().Err(err).Msg("close job store")
	}
	log.Info().Msg("server exited cleanly")
}
