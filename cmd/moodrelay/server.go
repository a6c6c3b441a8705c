package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/moodrelay/internal/api"
	"github.com/kalambet/moodrelay/internal/config"
	"github.com/kalambet/moodrelay/internal/metrics"
	"github.com/kalambet/moodrelay/internal/proxy"
	"github.com/kalambet/moodrelay/internal/relay"
	"github.com/kalambet/moodrelay/internal/sentiment"
	"github.com/kalambet/moodrelay/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the moodrelay server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

func runServer(ctx context.Context) error {
	fmt.Fprintf(os.Stderr, "moodrelay version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		printWarning("unknown log level %q, using info", cfg.Log.Level)
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := cfg.RequireAPIKey(); err != nil {
		printWarning("%v. /chat will fail until a key is configured", err)
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DSN, cfg.Storage.MaxRecords)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	slog.Info("storage ready", "backend", cfg.Storage.Backend, "max_records", cfg.Storage.MaxRecords)

	m := metrics.New()
	m.TrackUsers(func() float64 {
		n, err := store.Users(context.Background())
		if err != nil {
			slog.Warn("counting users failed", "error", err)
			return 0
		}
		return float64(n)
	})

	llm := proxy.NewClient(proxy.Options{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Referer:   cfg.LLM.Referer,
		Title:     cfg.LLM.Title,
	})
	slog.Info("LLM client configured", "base_url", cfg.LLM.BaseURL, "model", llm.Model())

	svc := relay.NewService(store, llm, relay.Options{
		SystemPrompt: cfg.LLM.SystemPrompt,
		Timeout:      cfg.LLM.Timeout,
		Window:       cfg.Mood.Window,
		Scorer:       sentiment.New(),
		Metrics:      m,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewHandler(svc, m),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "moodrelay listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.MCP.Enabled {
		// stdout belongs to the MCP transport from here on.
		stdioSrv := server.NewStdioServer(api.NewMCPServer(svc, version))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
}
