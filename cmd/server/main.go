package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/flowgraph/internal/config"
	"github.com/me/flowgraph/internal/logging"
	"github.com/me/flowgraph/internal/scheduler"
	"github.com/me/flowgraph/internal/server"
	"github.com/me/flowgraph/internal/store"
	"github.com/me/flowgraph/internal/toolbox"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path")
	flag.StringVar(&cfg.ToolsPath, "tools", cfg.ToolsPath, "Tool registry file (empty accepts any tool id)")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "How often queued invocations are dispatched")
	flag.Float64Var(&cfg.Layout.ColumnWidth, "layout-column-width", cfg.Layout.ColumnWidth, "Horizontal distance between layout levels")
	flag.Float64Var(&cfg.Layout.RowHeight, "layout-row-height", cfg.Layout.RowHeight, "Vertical distance between steps of one layout level")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	format, _ := logging.ParseFormat(cfg.LogFormat)
	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), format)

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", cfg.DBPath)

	var serverOpts []server.Option
	if cfg.ToolsPath != "" {
		tools, err := toolbox.Load(cfg.ToolsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load tools: %v\n", err)
			os.Exit(1)
		}
		serverOpts = append(serverOpts, server.WithTools(tools))
		logger.Info("tool registry loaded", "path", cfg.ToolsPath)
	} else {
		logger.Info("no tool registry configured; tool ids are not checked")
	}

	// Create the dispatch loop. Invocations are handed to the log handler
	// until a compute backend is attached.
	sched := scheduler.NewLoop(st, scheduler.NewLogHandler(logger), scheduler.Config{PollInterval: cfg.PollInterval}, logger)

	srv := server.New(cfg, st, sched, logger, serverOpts...)
	sched.SetObserver(srv.Metrics().ObserveInvocation)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start scheduler in background.
	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop scheduler before HTTP server.
	if err := sched.Stop(); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
