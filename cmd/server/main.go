package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardvault/internal/api"
	"cardvault/internal/cardref"
	"cardvault/internal/config"
	"cardvault/internal/database"
	"cardvault/internal/match"
	"cardvault/internal/ocr"
	"cardvault/internal/pipeline"
	"cardvault/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("CARDVAULT_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ocrClient := ocr.NewHTTPClient(cfg.OCR.Endpoint, cfg.OCR.APIKey,
		time.Duration(cfg.OCR.TimeoutSeconds)*time.Second)
	cardClient := cardref.NewHTTPClient(cfg.CardRef.Endpoint, cfg.CardRef.APIKey,
		time.Duration(cfg.CardRef.TimeoutSeconds)*time.Second)

	matcher, err := match.New(cardClient, match.Config{
		Weights: match.Weights{
			Year:       cfg.Matcher.YearWeight,
			Pokemon:    cfg.Matcher.PokemonWeight,
			CardNumber: cfg.Matcher.CardNumberWeight,
			Modifier:   cfg.Matcher.ModifierWeight,
			Set:        cfg.Matcher.SetWeight,
		},
		MinConfidence:      cfg.Matcher.MinConfidence,
		ReportedCandidates: cfg.Matcher.ReportedCandidates,
		MaxCandidates:      cfg.CardRef.MaxCandidates,
	}, logger)
	if err != nil {
		logger.Error("failed to build matcher", "error", err)
		os.Exit(1)
	}

	svc := pipeline.NewService(
		database.NewScanRepository(db),
		database.NewStitchedImageRepository(db),
		store, ocrClient, matcher,
		pipeline.Config{
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
			LabelCropRatio: cfg.Pipeline.LabelCropRatio,
			LabelWidth:     cfg.Pipeline.LabelWidth,
		},
		logger,
	)

	app := api.NewApp(svc, cfg.Server.MaxUploadSize, logger)
	server := &http.Server{
		Addr:    cfg.Server.Bind,
		Handler: api.NewRouter(app),
	}

	go func() {
		logger.Info("server starting", "bind", cfg.Server.Bind,
			"upload_dir", cfg.Storage.UploadDir, "db_path", cfg.Storage.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
