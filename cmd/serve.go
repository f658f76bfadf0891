package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiesman99/imslice/internal/server"
	"github.com/kiesman99/imslice/internal/slicer"
)

func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the slicing API",
		Long: `Start an HTTP server that provides a REST API for planning, slicing and
joining tiles.

Examples:
  # Start server on default port 8080
  imslice serve

  # Start server on custom port
  imslice serve --port 3000

  # Start server with custom bind address
  imslice serve --bind 0.0.0.0 --port 8080`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd, map[string]string{
				"server.bind":       "bind",
				"server.port":       "port",
				"server.timeout":    "timeout",
				"server.max-upload": "max-upload",
				"workers":           "workers",
			})
		},
		RunE: a.runServe,
	}

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	serveCmd.Flags().Int64("max-upload", server.DefaultMaxUploadBytes, "largest accepted request body in bytes")
	serveCmd.Flags().Int("workers", 1, "number of tiles cropped concurrently per request")

	return serveCmd
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	bind := a.v.GetString("server.bind")
	port := a.v.GetInt("server.port")
	timeout := a.v.GetDuration("server.timeout")

	addr := fmt.Sprintf("%s:%d", bind, port)

	apiServer := server.NewServer(Version, &server.Options{
		Slicer: slicer.New(&slicer.Options{
			Workers: a.v.GetInt("workers"),
			Logger:  a.logger,
		}),
		Logger:         a.logger,
		MaxUploadBytes: a.v.GetInt64("server.max-upload"),
	})

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(apiServer, timeout),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		<-cmd.Context().Done()

		fmt.Fprintf(cmd.ErrOrStderr(), "\nShutting down server...\n")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("server shutdown", "err", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Starting imslice server on %s\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s%s/health\n", addr, server.APIPrefix)
	fmt.Fprintf(cmd.ErrOrStderr(), "Slice endpoint: http://%s%s/slice\n", addr, server.APIPrefix)
	fmt.Fprintf(cmd.ErrOrStderr(), "Join endpoint: http://%s%s/join\n", addr, server.APIPrefix)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
