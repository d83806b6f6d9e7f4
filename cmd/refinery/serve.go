package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/longregen/refinery/internal/adapters/http"
	"github.com/longregen/refinery/internal/adapters/http/handlers"
	"github.com/longregen/refinery/internal/adapters/id"
)

// serveCmd starts the HTTP API server
func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Refinery API server",
		Long: `Serve exposes session creation, listing, retrieval and similarity search
over REST, plus a per-session websocket feed that streams iteration
progress while a run is in flight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, host:port (default from config)")

	return cmd
}

func runServer(ctx context.Context, addr string) error {
	if addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("invalid --addr %q: %w", addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid --addr port %q: %w", portStr, err)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}

	log.Println("Starting Refinery API server...")
	log.Printf("HTTP server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("LLM backend: %s (%s)", cfg.LLM.URL, cfg.LLM.Model)
	if cfg.IsDatabaseConfigured() {
		log.Printf("Session store: PostgreSQL")
	} else {
		log.Printf("Session store: %s (JSON files)", cfg.Output.Dir)
	}
	log.Printf("Embeddings: %s", boolStatus(cfg.IsEmbeddingConfigured()))

	shutdownTracing := initTracing(ctx)
	defer shutdownTracing()

	backend, err := openBackend(ctx, cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer backend.Close()

	broadcaster := handlers.NewBroadcaster()
	runner, err := buildRunSession(broadcaster)
	if err != nil {
		return err
	}

	server := http.NewServer(
		cfg,
		runner,
		backend.store,
		backend.persister,
		backend.persister,
		id.New(),
		broadcaster,
		version,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Println("Server stopped")
	}

	return nil
}
