package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ritesh-sh/Blog-AI/internal/config"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"github.com/Ritesh-sh/Blog-AI/internal/pipeline"
	"github.com/Ritesh-sh/Blog-AI/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		noSave bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the Blog-AI HTTP API.

The server provides:
  • POST /api/generate-blog to turn a URL into a blog post
  • POST /api/estimate-cost to price a generation before running it
  • GET /api/blogs, /api/blogs/{id} and /api/blogs/{id}/export for history
  • GET /health and GET / for service checks

Examples:
  # Start server on the configured port (default 8000)
  blogai serve

  # Start on custom port without persisting results
  blogai serve --port 3000 --no-save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, noSave)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8000)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not persist generated blogs")

	return cmd
}

func runServe(ctx context.Context, port int, host string, noSave bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}

	log := logger.Get()
	log.Info("Starting Blog-AI", "env", cfg.App.Env, "model", cfg.AI.Gemini.Model, "database", cfg.Database.Driver)

	builder := pipeline.NewBuilder(cfg).WithLogger(log)
	if noSave {
		builder = builder.WithoutHistory()
	}
	pipe, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer pipe.Close()

	var history server.History
	if s := builder.Store(); s != nil {
		if err := s.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		history = s
		log.Info("History storage ready", "driver", s.Driver())
	}

	srv := server.New(pipe, history, cfg, log)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", cfg.Server.Host, cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 30*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
