// ABOUTME: Main entry point for the rpcd JSON-RPC server
// ABOUTME: Loads configuration, binds the demo methods and serves HTTP and WebSocket on one listener

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/harper/rpc-engine/internal/config"
	"github.com/harper/rpc-engine/internal/db"
	"github.com/harper/rpc-engine/internal/dispatcher"
	rpchttp "github.com/harper/rpc-engine/internal/http"
	"github.com/harper/rpc-engine/internal/logger"
	"github.com/harper/rpc-engine/internal/management"
	"github.com/harper/rpc-engine/internal/methods"
	"github.com/harper/rpc-engine/internal/pipeline"
	"github.com/harper/rpc-engine/internal/value"
	"github.com/harper/rpc-engine/internal/websocket"
	"github.com/harper/rpc-engine/internal/xdg"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: $XDG_CONFIG_HOME/rpc-engine/config.yaml if present)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env: %v", err)
	}

	path := *configPath
	if path == "" {
		if _, err := os.Stat(xdg.ConfigFile()); err == nil {
			path = xdg.ConfigFile()
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load config: %v", err)
		os.Exit(1)
	}
	logger.SetVerbose(cfg.Logging.Verbose || *verbose)

	if err := run(cfg); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	d := dispatcher.New(dispatcher.WithConverters(value.StandardRegistry()))
	if err := methods.Register(d); err != nil {
		return err
	}
	for alias, target := range cfg.Dispatcher.Aliases {
		if err := d.Alias(alias, target); err != nil {
			return err
		}
		logger.Info("alias %s -> %s", alias, target)
	}

	opts := []pipeline.Option{
		pipeline.WithIdleTimeout(cfg.Pipeline.IdleTimeout()),
		pipeline.WithName("rpcd"),
	}
	var journal *db.DB
	if cfg.Database.Path != "" {
		var err error
		journal, err = db.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer func() { _ = journal.Close() }()
		opts = append(opts, pipeline.WithJournal(journal))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	opts = append(opts, pipeline.WithContext(ctx))

	server := pipeline.NewServer(d, opts...)
	if journal != nil {
		if err := journal.RegisterPipeline(server.ID(), "server", server.Name()); err != nil {
			return err
		}
	}

	handler := rpchttp.NewServer(server, cfg.Server.HTTPPath)
	handler.Handle(cfg.Server.WebSocketPath, websocket.NewServer(server, nil))
	handler.Handle("/api/", management.NewServer(cfg, d, journal))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving %d methods on http://%s%s (websocket %s)",
		len(d.Methods()), cfg.Server.Addr(), cfg.Server.HTTPPath, cfg.Server.WebSocketPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("shut down")
	return nil
}
