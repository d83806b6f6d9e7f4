package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/longregen/refinery/internal/adapters/llm"
	"github.com/longregen/refinery/internal/config"
)

func main() {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "refinery",
		Short: "Refinery - iterative prompt refinement pipeline",
		Long: `Refinery runs task prompts through an iterative generate/judge/critique
loop against an OpenAI-compatible backend and keeps the best-scoring
solution.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			llmClient = llm.NewClient(llm.ClientConfig{
				BaseURL:     cfg.LLM.URL,
				APIKey:      cfg.LLM.APIKey,
				Model:       cfg.LLM.Model,
				MaxTokens:   cfg.LLM.MaxTokens,
				Temperature: cfg.LLM.Temperature,
				TopP:        cfg.LLM.TopP,
				Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			})

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		runCmd(),
		batchCmd(),
		serveCmd(),
		sessionsCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("LLM:")
			fmt.Printf("  URL:         %s\n", cfg.LLM.URL)
			fmt.Printf("  Model:       %s\n", cfg.LLM.Model)
			fmt.Printf("  Max Tokens:  %d\n", cfg.LLM.MaxTokens)
			fmt.Printf("  Temperature: %.2f\n", cfg.LLM.Temperature)
			fmt.Printf("  Top P:       %.2f\n", cfg.LLM.TopP)
			fmt.Printf("  Timeout:     %ds\n", cfg.LLM.TimeoutSeconds)
			fmt.Printf("  API Key:     %s\n", maskSecret(cfg.LLM.APIKey))
			fmt.Println()

			fmt.Println("Retry:")
			fmt.Printf("  Max Attempts:  %d\n", cfg.Retry.MaxAttempts)
			fmt.Printf("  Initial Delay: %.1fs\n", cfg.Retry.InitialDelaySeconds)
			fmt.Printf("  Max Delay:     %.1fs\n", cfg.Retry.MaxDelaySeconds)
			fmt.Printf("  Multiplier:    %.1f\n", cfg.Retry.Multiplier)
			fmt.Printf("  Jitter:        %.2f\n", cfg.Retry.JitterFraction)
			fmt.Println()

			fmt.Println("Pipeline:")
			fmt.Printf("  Iterations:   %d\n", cfg.Pipeline.Iterations)
			if cfg.Pipeline.TemplateDir != "" {
				fmt.Printf("  Template Dir: %s\n", cfg.Pipeline.TemplateDir)
			} else {
				fmt.Printf("  Template Dir: (built-in templates)\n")
			}
			fmt.Println()

			fmt.Println("Embedding:")
			fmt.Printf("  URL:        %s\n", cfg.Embedding.URL)
			fmt.Printf("  Model:      %s\n", cfg.Embedding.Model)
			fmt.Printf("  Dimensions: %d\n", cfg.Embedding.Dimensions)
			fmt.Printf("  API Key:    %s\n", maskSecret(cfg.Embedding.APIKey))
			fmt.Printf("  Status:     %s\n", boolStatus(cfg.IsEmbeddingConfigured()))
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Database.URL))
			fmt.Printf("  Status:     %s\n", boolStatus(cfg.IsDatabaseConfigured()))
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Host:         %s\n", cfg.Server.Host)
			fmt.Printf("  Port:         %d\n", cfg.Server.Port)
			fmt.Printf("  CORS Origins: %s\n", strings.Join(cfg.Server.CORSOrigins, ", "))
			fmt.Println()

			fmt.Println("Output:")
			fmt.Printf("  Dir: %s\n", cfg.Output.Dir)
			fmt.Println()

			fmt.Println("Tracing:")
			fmt.Printf("  Enabled: %t\n", cfg.Tracing.Enabled)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  REFINERY_LLM_URL, REFINERY_LLM_API_KEY, REFINERY_LLM_MODEL")
			fmt.Println("  REFINERY_LLM_MAX_TOKENS, REFINERY_LLM_TEMPERATURE, REFINERY_LLM_TOP_P")
			fmt.Println("  REFINERY_RETRY_MAX_ATTEMPTS, REFINERY_RETRY_INITIAL_DELAY, REFINERY_RETRY_MAX_DELAY")
			fmt.Println("  REFINERY_ITERATIONS, REFINERY_TEMPLATE_DIR, REFINERY_OUTPUT_DIR")
			fmt.Println("  REFINERY_EMBEDDING_URL, REFINERY_EMBEDDING_API_KEY, REFINERY_EMBEDDING_MODEL")
			fmt.Println("  REFINERY_DATABASE_URL")
			fmt.Println("  REFINERY_SERVER_HOST, REFINERY_SERVER_PORT, REFINERY_CORS_ORIGINS")
			fmt.Println("  REFINERY_TRACING_ENABLED")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Refinery %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}
