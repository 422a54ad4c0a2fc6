package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/noirline/internal/ai"
	"github.com/myrjola/noirline/internal/envstruct"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/game"
	"github.com/myrjola/noirline/internal/generator"
	"github.com/myrjola/noirline/internal/images"
	"github.com/myrjola/noirline/internal/logging"
	"github.com/myrjola/noirline/internal/pprofserver"
	"github.com/myrjola/noirline/internal/repositories"
	"github.com/myrjola/noirline/internal/sqlite"
)

type application struct {
	logger    *slog.Logger
	games     *game.Service
	staticDir string
}

type config struct {
	// Addr is the address to listen on. Port 0 picks a random free port.
	Addr string `env:"NOIRLINE_ADDR" envDefault:"localhost:4000"`
	// SqliteURL is the path to the SQLite database file or ":memory:".
	SqliteURL string `env:"NOIRLINE_SQLITE_URL" envDefault:"./noirline.sqlite"`
	// StaticDir is served under /static/. Generated images are written to its images directory.
	StaticDir string `env:"NOIRLINE_STATIC_DIR" envDefault:"./ui/static"`

	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `env:"OPENAI_BASE_URL" envDefault:""`
	OpenAIChatModel  string  `env:"OPENAI_CHAT_MODEL" envDefault:"gpt-4"`
	OpenAIImageModel string  `env:"OPENAI_IMAGE_MODEL" envDefault:"dall-e-2"`
	Temperature      float64 `env:"NOIRLINE_TEMPERATURE" envDefault:"0.7"`
	AITimeoutSeconds int     `env:"NOIRLINE_AI_TIMEOUT_SECONDS" envDefault:"60"`
	// RenderDefaults renders missing default backgrounds in the background on startup.
	RenderDefaults bool `env:"NOIRLINE_RENDER_DEFAULTS" envDefault:"false"`
	// PprofAddr enables profiling endpoints on a separate listener. Empty disables them.
	PprofAddr string `env:"NOIRLINE_PPROF_ADDR" envDefault:""`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	if cfg.PprofAddr != "" {
		if _, err := pprofserver.Launch(ctx, cfg.PprofAddr, logger); err != nil {
			return errors.Wrap(err, "launch pprof server")
		}
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close database",
				errors.SlogError(errors.Wrap(closeErr, "close database")))
		}
	}()

	aiTimeout := time.Duration(cfg.AITimeoutSeconds) * time.Second
	client := ai.NewClient(ai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ChatModel:  cfg.OpenAIChatModel,
		ImageModel: cfg.OpenAIImageModel,
		Timeout:    aiTimeout,
	}, logger)
	gen := generator.New(client, float32(cfg.Temperature), logger)
	repo := repositories.NewGameRepository(db, logger)
	cache := images.NewCache(gen, client, repo, images.NewDiskStore(filepath.Join(cfg.StaticDir, "images")), logger)

	if cfg.RenderDefaults {
		go func() {
			rendered, renderErr := cache.EnsureDefaults(ctx)
			if renderErr != nil {
				logger.LogAttrs(ctx, slog.LevelWarn, "failed to render default backgrounds", errors.SlogError(renderErr))
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "default backgrounds ready", slog.Any("rendered", rendered))
		}()
	}

	app := application{
		logger:    logger,
		games:     game.NewService(gen, repo, cache, logger),
		staticDir: cfg.StaticDir,
	}

	// The slowest handlers make two model calls in a row.
	return app.configureAndStartServer(ctx, cfg.Addr, 2*aiTimeout+handlerSlack)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))

	// The .env file is optional, the environment may be configured directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failed to load .env", errors.SlogError(err))
		os.Exit(1) //nolint:gocritic // exitAfterDefer
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
