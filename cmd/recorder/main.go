// Command recorder opens a browser tab and records the user's interactions.
// Ctrl+Alt+R starts and stops a recording; on stop the recording is named
// and emitted on the configured transports.
//
// Usage:
//
//	recorder -config recorder.yaml
//	recorder -url https://example.com -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/wsrecorder/connectivity"
	"github.com/hazyhaar/wsrecorder/recorder"
	"github.com/hazyhaar/wsrecorder/shield"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to recorder.yaml config file")
	startURL := flag.String("url", "", "page to open for recording")
	envFile := flag.String("env", ".env", "dotenv file loaded before reading RECORDER_* variables")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("recorder: load env file", "path", *envFile, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *startURL); err != nil {
		logger.Error("recorder: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, startURL string) error {
	cfg, err := recorder.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if startURL != "" {
		cfg.Browser.StartURL = startURL
	}

	rec, err := recorder.New(cfg, recorder.WithLogger(logger))
	if err != nil {
		return err
	}

	reg := connectivity.New(connectivity.WithLogger(logger))
	defer reg.Close()
	reg.RegisterTransport("http", connectivity.HTTPFactory())
	rec.RegisterConnectivity(reg)

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		if err := rec.Close(); err != nil {
			logger.Warn("recorder: close", "error", err)
		}
	}()

	if err := rec.WatchRoutes(runCtx, reg); err != nil {
		return err
	}

	if err := rec.Start(runCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if cfg.HTTP.Addr != "" {
		srv := newServer(cfg.HTTP.Addr, rec, reg)
		go func() {
			logger.Info("recorder: http listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("recorder: http server", "error", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("recorder: http shutdown", "error", err)
			}
		}()
	}

	<-runCtx.Done()
	logger.Info("recorder: shutting down")
	return nil
}

func newServer(addr string, rec *recorder.Recorder, reg *connectivity.Router) *http.Server {
	r := chi.NewRouter()
	for _, mw := range shield.Default() {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	rec.RegisterHTTP(r, reg)

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "wsrecorder", Version: version}, nil)
	rec.RegisterMCP(mcpSrv)
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
