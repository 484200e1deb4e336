package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"olafo/config"
	"olafo/controllers"
	"olafo/db"
	"olafo/journal"
	"olafo/persona"
	"olafo/relay"
	"olafo/router"
	"olafo/tools"
	"olafo/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg)

	p, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("persona load failed")
	}

	completer := tools.NewCompletionClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.UpstreamTimeout)
	sender := tools.NewGraphClient(tools.GraphOptions{
		BaseURL:       cfg.Graph.BaseURL,
		ApiVersion:    cfg.Graph.ApiVersion,
		AccessToken:   cfg.Graph.PageAccessToken,
		Platform:      cfg.Graph.Platform,
		PhoneNumberID: cfg.Graph.PhoneNumberID,
		Timeout:       cfg.UpstreamTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := relay.Options{
		Completer: completer,
		Sender:    sender,
		Persona:   p,
		Logger:    logger,
	}

	deps := router.Dependencies{Config: cfg, Logger: logger}

	// Journal
	switch cfg.Journal.Backend {
	case config.JOURNAL_DATABASE:
		conn, err := db.Connect(cfg.Journal.Database, cfg.Journal.DatabaseDSN, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("journal database connection failed")
		}
		defer conn.Close()

		store := journal.NewDatabase(conn)
		opts.Recorder = store
		deps.Journal = conn
		workers.StartJournalPruner(ctx, store, cfg.Journal.PruneSchedule, cfg.Journal.Retention, logger)
	case config.JOURNAL_REDIS:
		stream, err := journal.NewRedis(ctx, cfg.Journal.RedisURL, cfg.Journal.RedisStream)
		if err != nil {
			logger.Fatal().Err(err).Msg("journal redis connection failed")
		}
		defer stream.Close()

		opts.Recorder = stream
		logger.Info().Str("stream", cfg.Journal.RedisStream).Msg("journaling to redis")
	default:
		logger.Info().Msg("journal disabled")
	}

	svc := relay.NewService(opts)
	deps.Webhook = controllers.NewWebhookController(cfg.Webhook.VerifyToken, cfg.Webhook.AppSecret, svc, logger)
	deps.Chat = controllers.NewChatController(svc, logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	router.Initialize(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.ApiPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// a resposta só sai depois do completion e do envio
		WriteTimeout: 2*cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.ApiPort).
			Str("env", cfg.Env).
			Str("platform", cfg.Graph.Platform).
			Str("model", cfg.OpenAI.Model).
			Msg("olafo relay listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

func newLogger(cfg config.Configuration) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
