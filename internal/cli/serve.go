package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/claimgate/internal/agent"
	"github.com/ppiankov/claimgate/internal/cache"
	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/security"
	"github.com/ppiankov/claimgate/internal/server"
	"github.com/ppiankov/claimgate/internal/storage"
	"github.com/ppiankov/claimgate/internal/vision"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the claim submission service",
	Long: `Serve starts the HTTP service that accepts claim submissions:
- POST /claims takes a multipart claim (message, metadata, image)
- The claim is screened for prompt injection before any model call
- A tool-calling agent adjudicates against the policy document
- Decisions are cached so resubmitting identical content never
  re-adjudicates

Requires OPENAI_API_KEY in the environment, plus MinIO credentials for
the object store. Set database.dsn (or CLAIMGATE_DATABASE_DSN) to
persist decisions in PostgreSQL.

Example:
  claimgate serve
  claimgate serve --addr :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cfg.Agent.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildServer assembles the full adjudication stack from configuration.
// The returned cleanup closes the database pool if one was opened.
func buildServer(ctx context.Context, cfg *model.Config, logger *slog.Logger) (*server.Server, func(), error) {
	store, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("connect object store: %w", err)
	}

	reasoner, err := agent.NewOpenAIReasoner(cfg.Agent)
	if err != nil {
		return nil, nil, err
	}

	analyzer := vision.NewAnalyzer(cfg.Agent.APIKey, cfg.Agent.BaseURL, cfg.Vision)
	tools := agent.NewToolbox(store, analyzer)
	orchestrator := agent.NewOrchestrator(
		reasoner,
		tools,
		security.NewInjectionFilter(),
		security.NewOutputValidator(),
		cfg.Agent.MaxSteps,
		logger,
	)

	cleanup := func() {}
	var persister server.DecisionPersister
	if cfg.Database.DSN != "" {
		decisions, err := storage.NewDecisionStore(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		persister = decisions
		cleanup = decisions.Close
	} else {
		logger.Warn("no database configured, decisions will not be persisted")
	}

	srv := server.New(
		orchestrator,
		store,
		persister,
		cache.NewDecisionCache(cfg.Server.DecisionTTL),
		cfg.Server.MaxUploadBytes,
		logger,
	)
	return srv, cleanup, nil
}
