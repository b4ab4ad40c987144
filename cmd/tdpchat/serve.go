package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/shutirtha-roy/tdp-chatbot-project/internal/http"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chatbot HTTP API",
		Long: `Serve the chatbot over HTTP until SIGINT or SIGTERM.

Routes:
  POST   /chat               ask a question in a session
  DELETE /chat/:session_id   clear a session's history
  POST   /add-data           add documents to the knowledge index
  POST   /add-topic          record topics
  POST   /similar-topics     top topics, or related questions for a query
  GET    /health, /status, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(ctx context.Context, port int) (err error) {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close(context.Background())) }()

	if port != 0 {
		a.cfg.Server.Port = port
	}
	srv, err := httpserver.NewServer(a.bot, a.logger, &httpserver.Config{
		Host:    a.cfg.Server.Host,
		Port:    a.cfg.Server.Port,
		Version: version,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info(ctx, "shutdown requested", zap.Duration("timeout", a.cfg.Server.ShutdownTimeout.Duration()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
