package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nanashi-games/turingden/internal/config"
	"github.com/nanashi-games/turingden/internal/database"
	"github.com/nanashi-games/turingden/internal/genai"
	"github.com/nanashi-games/turingden/internal/migrations"
	"github.com/nanashi-games/turingden/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Content generator ---
	gen := genai.New(genai.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeneratorTimeout,
	})
	if cfg.GeminiAPIKey == "" {
		logger.Warn("no generator api key, personas will use fallback content")
	}

	// --- App + HTTP server ---
	app, err := server.NewApp(server.NewDocStore(db), gen, logger, server.Options{
		BaseURL:          cfg.PublicBaseURL,
		PolicyVersion:    cfg.PersonaPolicy,
		GeneratorTimeout: cfg.GeneratorTimeout,
		TickInterval:     cfg.TickInterval,
	})
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}
	srv := server.New(cfg.HTTPAddr, logger, app, db)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting crowd scheduler", "interval", cfg.TickInterval)
		err := app.Scheduler.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
