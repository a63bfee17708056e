package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/astrogalery/astrogalery/internal/config"
	"github.com/astrogalery/astrogalery/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preview the built site",
		Long: `Serves the output directory of a build on the specified port, along with a
read-only JSON API over its data files:

  /api/images            image records (?catalog=, ?tag= filters)
  /api/objects           object groups
  /api/objects/{slug}    one object with its image records`,
		Example: `  # Start server on default port 8888
  astrogalery serve

  # Start server on custom port
  astrogalery serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			handler := handlers.New(cfg.Output)

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/images", handler.HandleImages)
			mux.HandleFunc("/api/objects", handler.HandleObjects)
			mux.HandleFunc("/api/objects/", handler.HandleObjectDetail)
			mux.HandleFunc("/", handler.HandleStatic)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Gallery preview available", "addr", addr, "url", "http://localhost"+addr, "site", cfg.Output)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
