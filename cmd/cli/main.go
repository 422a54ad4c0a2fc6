package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/noirline/cmd/cli/img"
	"github.com/myrjola/noirline/internal/ai"
	"github.com/myrjola/noirline/internal/envstruct"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/generator"
	"github.com/myrjola/noirline/internal/logging"
	"github.com/spf13/cobra"
)

type config struct {
	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `env:"OPENAI_BASE_URL" envDefault:""`
	OpenAIChatModel  string  `env:"OPENAI_CHAT_MODEL" envDefault:"gpt-4"`
	OpenAIImageModel string  `env:"OPENAI_IMAGE_MODEL" envDefault:"dall-e-2"`
	Temperature      float64 `env:"NOIRLINE_TEMPERATURE" envDefault:"0.7"`
	AITimeoutSeconds int     `env:"NOIRLINE_AI_TIMEOUT_SECONDS" envDefault:"120"`
}

var logger = slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: slog.LevelInfo,
})))

// env loads the configuration and returns a model client for it.
func env() (*ai.Client, config, error) {
	var cfg config
	if err := envstruct.Populate(&cfg, os.LookupEnv); err != nil {
		return nil, cfg, errors.Wrap(err, "populate config")
	}
	client := ai.NewClient(ai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ChatModel:  cfg.OpenAIChatModel,
		ImageModel: cfg.OpenAIImageModel,
		Timeout:    time.Duration(cfg.AITimeoutSeconds) * time.Second,
	}, logger)
	return client, cfg, nil
}

func newClient() (*ai.Client, error) {
	client, _, err := env()
	return client, err
}

func init() {
	rootCmd.AddCommand(outlineCmd)
	rootCmd.AddGroup(img.Group)
	rootCmd.AddCommand(img.NewGenerate(newClient, logger))
	rootCmd.AddCommand(img.NewDefaults(newClient, logger))
}

var rootCmd = &cobra.Command{
	Use:           "noirline-cli",
	Long:          `Command line utilities for generating Noirline content without running the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, "load .env")
		}
		return nil
	},
}

var outlineCmd = &cobra.Command{
	Use:   "outline",
	Short: "Generate a story outline",
	Long:  `Generates a 10-level story outline and prints it as JSON.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, cfg, err := env()
		if err != nil {
			return err
		}
		outline, err := generator.New(client, float32(cfg.Temperature), logger).GenerateOutline(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "generate outline")
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(outline), "encode outline")
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer
	}
}
