package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/longregen/refinery/internal/adapters/http/dto"
	"github.com/longregen/refinery/internal/adapters/http/encoding"
	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/domain/models"
)

// sessionsCmd groups the stored-session inspection commands
func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions",
	}

	cmd.AddCommand(
		sessionsListCmd(),
		sessionsShowCmd(),
		sessionsExportCmd(),
		sessionsSearchCmd(),
	)

	return cmd
}

func sessionsListCmd() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			backend, err := openBackend(ctx, cfg.Output.Dir)
			if err != nil {
				return err
			}
			defer backend.Close()

			sessions, err := backend.store.List(ctx, limit, offset)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			printSessionTable(sessions)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of sessions to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of sessions to skip")

	return cmd
}

func sessionsShowCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sessionID := args[0]

			backend, err := openBackend(ctx, cfg.Output.Dir)
			if err != nil {
				return err
			}
			defer backend.Close()

			session, err := backend.store.GetByID(ctx, sessionID)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) {
					return fmt.Errorf("session not found: %s", sessionID)
				}
				return err
			}

			fmt.Printf("%-15s %s\n", "Session:", session.ID)
			fmt.Printf("%-15s %s\n", "Prompt:", session.OriginalPrompt)
			fmt.Printf("%-15s %s\n", "Started:", session.StartTime.Format("2006-01-02 15:04:05"))
			fmt.Printf("%-15s %.2fs\n", "Duration:", session.DurationSeconds)
			if session.BestScore > models.InitialBestScore {
				fmt.Printf("%-15s %.1f\n", "Best Score:", session.BestScore)
			}
			fmt.Println()

			for _, it := range session.Iterations {
				fmt.Printf("Iteration %d (score %.1f, %.2fs):\n",
					it.Index, it.Evaluation.OverallScore, it.DurationSeconds)
				if full {
					fmt.Printf("  Solution: %s\n", it.Solution)
					fmt.Printf("  Feedback: %s\n", it.Evaluation.Feedback)
					if it.Critique != nil {
						fmt.Printf("  Critique: %s\n", *it.Critique)
					}
				} else {
					fmt.Printf("  %s\n", firstWords(it.Solution, 30))
				}
				fmt.Println()
			}

			if session.BestSolution != "" {
				fmt.Println(strings.Repeat("-", 40))
				fmt.Println(centered("BEST SOLUTION", 40))
				fmt.Println(strings.Repeat("-", 40))
				fmt.Println(session.BestSolution)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&full, "full", "v", false, "Print full solutions, feedback and critiques")

	return cmd
}

func sessionsExportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export one stored session as JSON or MessagePack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sessionID := args[0]

			backend, err := openBackend(ctx, cfg.Output.Dir)
			if err != nil {
				return err
			}
			defer backend.Close()

			session, err := backend.store.GetByID(ctx, sessionID)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) {
					return fmt.Errorf("session not found: %s", sessionID)
				}
				return err
			}

			record := (&dto.SessionResponse{}).FromModel(session)

			var data []byte
			switch format {
			case "json":
				data, err = json.MarshalIndent(record, "", "  ")
			case "msgpack":
				data, err = encoding.Marshal(record)
			default:
				return fmt.Errorf("unsupported format %q (use json or msgpack)", format)
			}
			if err != nil {
				return err
			}

			if output == "" {
				if format == "msgpack" {
					return fmt.Errorf("msgpack export requires --output")
				}
				fmt.Println(string(data))
				return nil
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Exported %s to %s\n", sessionID, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Export format: json or msgpack")
	cmd.Flags().StringVar(&output, "output", "", "Write to a file instead of stdout")

	return cmd
}

func sessionsSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find sessions with similar prompts",
		Long: `Search embeds the query and ranks stored sessions by prompt similarity.
Requires PostgreSQL and a configured embedding endpoint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := args[0]

			backend, err := openBackend(ctx, cfg.Output.Dir)
			if err != nil {
				return err
			}
			defer backend.Close()

			sessions, err := backend.persister.FindSimilar(ctx, query, limit)
			if err != nil {
				return fmt.Errorf("similarity search failed: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Println("No similar sessions found.")
				return nil
			}

			printSessionTable(sessions)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum number of matches")

	return cmd
}

// printSessionTable prints one line per session with the prompt truncated
// to keep the table readable.
func printSessionTable(sessions []*models.Session) {
	fmt.Printf("%-28s %-44s %6s %6s %s\n", "ID", "Prompt", "Iters", "Best", "Started")
	fmt.Println(strings.Repeat("-", 100))
	for _, s := range sessions {
		taskPrompt := s.OriginalPrompt
		if len(taskPrompt) > 44 {
			taskPrompt = taskPrompt[:41] + "..."
		}
		best := "-"
		if s.BestScore > models.InitialBestScore {
			best = fmt.Sprintf("%.1f", s.BestScore)
		}
		fmt.Printf("%-28s %-44s %6d %6s %s\n",
			s.ID, taskPrompt, len(s.Iterations), best, s.StartTime.Format("2006-01-02 15:04"))
	}
}
