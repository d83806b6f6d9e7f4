package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/longregen/refinery/internal/adapters/filestore"
	"github.com/longregen/refinery/internal/application/usecases"
	"github.com/longregen/refinery/internal/domain/models"
)

// runCmd runs a single refinement session
func runCmd() *cobra.Command {
	var (
		promptFlag string
		promptFile string
		iterations int
		outputDir  string
		saveDB     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a refinement session for a single prompt",
		Long: `Run sends a prompt through the iterative refinement loop and prints a
summary. Results are written as JSON files under the output directory;
--save-db additionally persists the session to PostgreSQL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			taskPrompt, err := resolvePrompt(promptFlag, promptFile)
			if err != nil {
				return err
			}
			if taskPrompt == "" {
				fmt.Println("No prompt provided. Exiting.")
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

			// Open the database before burning LLM calls, so a bad
			// connection string fails the run immediately.
			var backend *sessionBackend
			if saveDB {
				if !cfg.IsDatabaseConfigured() {
					return fmt.Errorf("--save-db requires a database. Set REFINERY_DATABASE_URL or database.url in the config file")
				}
				backend, err = openBackend(ctx, outputDir)
				if err != nil {
					return err
				}
				defer backend.Close()
			}

			uc, err := buildRunSession(nil)
			if err != nil {
				return err
			}

			store, err := filestore.New(outputDir, slog.Default())
			if err != nil {
				return err
			}

			session, err := uc.Execute(ctx, usecases.RunSessionInput{
				Prompt:     taskPrompt,
				Iterations: iterations,
			})
			if err != nil {
				return err
			}

			if err := store.Save(ctx, session); err != nil {
				return err
			}
			if backend != nil {
				if err := backend.persister.Save(ctx, session); err != nil {
					return fmt.Errorf("failed to save session to database: %w", err)
				}
			}

			printSummary(session, iterations)
			fmt.Printf("\nResults saved to: %s\n", store.Path(session.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Task prompt to refine")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "Read the task prompt from a file")
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Number of refinement iterations (default from config)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for session JSON files (default from config)")
	cmd.Flags().BoolVar(&saveDB, "save-db", false, "Also persist the session to PostgreSQL")

	return cmd
}

// resolvePrompt picks the task prompt from the flag, the prompt file or an
// interactive read, in that order.
func resolvePrompt(flagValue, file string) (string, error) {
	if flagValue != "" {
		return strings.TrimSpace(flagValue), nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return readPromptInteractive(), nil
}

// readPromptInteractive collects a multi-line prompt from stdin, ending on
// the first empty line.
func readPromptInteractive() string {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(centered("AI REFINERY - RECURSIVE IMPROVEMENT PIPELINE", 80))
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("\nEnter your initial prompt (press Enter on an empty line to finish):")

	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}

	taskPrompt := strings.TrimSpace(strings.Join(lines, "\n"))
	if taskPrompt == "" {
		fmt.Println("No prompt provided. Using default prompt.")
		taskPrompt = "Explain the concept of artificial intelligence in simple terms."
	}
	fmt.Printf("\nUsing prompt: %s\n", taskPrompt)
	return taskPrompt
}

// centered pads s with spaces so it sits in the middle of width columns.
func centered(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s
}

// printSummary prints the end-of-run report for a finished session.
func printSummary(session *models.Session, requested int) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(centered("AI REFINERY - PIPELINE SUMMARY", 80))
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-20s %s\n", "Session ID:", session.ID)
	fmt.Printf("%-20s %s\n", "Timestamp:", session.StartTime.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Printf("%-20s %s\n", "Prompt:", session.OriginalPrompt)
	fmt.Printf("%-20s %d/%d\n", "Iterations:", len(session.Iterations), requested)
	if session.BestScore > models.InitialBestScore {
		fmt.Printf("%-20s %.2f\n", "Best Score:", session.BestScore)
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", 40))
	fmt.Println(centered("ITERATION SUMMARIES", 40))
	fmt.Println(strings.Repeat("-", 40))
	for _, it := range session.Iterations {
		fmt.Printf("\nIteration %d:\n", it.Index)
		fmt.Printf("  - Score: %.1f\n", it.Evaluation.OverallScore)
		fmt.Printf("  - Duration: %.2fs\n", it.DurationSeconds)
	}
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(centered("PIPELINE COMPLETED SUCCESSFULLY", 80))
	fmt.Println(strings.Repeat("=", 80))
}

// firstWords returns the first n whitespace-separated words of s, with an
// ellipsis when s is longer.
func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}
