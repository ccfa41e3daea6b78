package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/echsylon/atlantis/pkg/logging"
	"github.com/echsylon/atlantis/pkg/mock"
	"github.com/echsylon/atlantis/pkg/serve"
	"github.com/spf13/cobra"
)

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	configPath string
	host       string
	port       int
	record     bool
	logLevel   string
	logFormat  string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve mock responses from a configuration file",
	Long: `Serve mock responses from a JSON or YAML configuration file.

The server runs in the foreground until SIGTERM/SIGINT. Requests without a
matching template are answered from the fallback base URL when one is
configured, otherwise with 404.`,
	Example: `  # Serve a catalog on the default port
  atlantis serve --config mocks.json

  # Record fallback responses into the catalog
  atlantis serve --config mocks.yaml --record

  # JSON logs for CI parsing
  atlantis serve --config mocks.json --log-format json`,
	RunE: runServe,
}

func init() {
	f := &serveFlagVals

	serveCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to mock configuration file (JSON or YAML) [required]")
	serveCmd.Flags().StringVar(&f.host, "host", "0.0.0.0", "Bind address")
	serveCmd.Flags().IntVarP(&f.port, "port", "p", 8080, "HTTP server port")
	serveCmd.Flags().BoolVar(&f.record, "record", false, "Record fallback responses into the catalog")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")

	_ = serveCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	f := &serveFlagVals

	cfg, err := mock.LoadFile(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(f.logLevel),
		Format: logging.ParseFormat(f.logFormat),
	})

	handler := serve.NewHandler(cfg)
	handler.SetLogger(log.With("component", "serve"))
	handler.SetRecording(f.record)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", f.host, f.port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("mock server listening", "addr", srv.Addr, "templates", len(cfg.Templates()))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}
	return nil
}
