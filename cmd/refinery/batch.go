package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/longregen/refinery/internal/application/usecases"
)

// batchCmd runs many prompts through the pipeline concurrently
func batchCmd() *cobra.Command {
	var (
		batchFile  string
		workers    int
		iterations int
		outputDir  string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run refinement sessions for a file of prompts",
		Long: `Batch reads one prompt per line from a file and refines them all on a
bounded worker pool. Finished sessions land in PostgreSQL when a
database is configured, otherwise as JSON files in the output
directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(batchFile)
			if err != nil {
				return fmt.Errorf("failed to read batch file: %w", err)
			}

			var prompts []string
			for _, line := range strings.Split(string(data), "\n") {
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					prompts = append(prompts, trimmed)
				}
			}
			if len(prompts) == 0 {
				fmt.Println("Batch file is empty. No prompts to process.")
				return nil
			}

			if iterations == 0 {
				iterations = cfg.Pipeline.Iterations
			}
			if outputDir == "" {
				outputDir = cfg.Output.Dir
			}

			shutdownTracing := initTracing(ctx)
			defer shutdownTracing()

			backend, err := openBackend(ctx, outputDir)
			if err != nil {
				return err
			}
			defer backend.Close()

			runner, err := buildRunSession(nil)
			if err != nil {
				return err
			}

			uc := usecases.NewRunBatch(runner, backend.persister, slog.Default())
			result, err := uc.Execute(ctx, usecases.RunBatchInput{
				Prompts:    prompts,
				Iterations: iterations,
				Workers:    workers,
			})
			if err != nil {
				return err
			}

			location := outputDir
			if cfg.IsDatabaseConfigured() {
				location = "PostgreSQL"
			}
			fmt.Printf("\nBatch processing complete. %d/%d runs succeeded.\n",
				result.Succeeded, result.Succeeded+result.Failed)
			fmt.Printf("Results saved in: %s\n", location)
			return nil
		},
	}

	cmd.Flags().StringVarP(&batchFile, "file", "f", "", "File with one prompt per line (required)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker pool size (default: CPU count, capped at 4)")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Number of refinement iterations per prompt (default from config)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for session JSON files (default from config)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
