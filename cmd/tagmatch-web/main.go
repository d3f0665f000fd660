package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"tagmatch/internal/config"
	"tagmatch/internal/logger"
	"tagmatch/internal/pipeline"
	"tagmatch/internal/shutdown"
	"tagmatch/internal/web"
)

func main() {
	var (
		port       int
		configPath string
		providers  []string
		verbose    bool
	)

	pflag.IntVarP(&port, "port", "P", 8080, "HTTP server port")
	pflag.StringVarP(&configPath, "config", "c", "", "Config file path")
	pflag.StringSliceVarP(&providers, "providers", "p", nil, "Providers to enable; queried in registration order (empty means all)")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "Log every request to stdout")
	pflag.Parse()

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("providers") {
		cfg.Providers = providers
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger with file logging
	l := logger.New(cfg.Verbose)
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(config.GetDefaultLogPath(), fmt.Sprintf("tagmatch-web-%d.log", time.Now().Unix()))
	}
	if err := l.SetFileLog(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to setup file logging: %v\n", err)
	}
	defer l.Close()

	orch, err := pipeline.NewOrchestrator(cfg, l, pipeline.Hooks{})
	if err != nil {
		l.Error("%v", err)
		os.Exit(1)
	}

	sh := shutdown.New(context.Background())
	sh.Listen()

	sessions := web.NewSessionManager()
	sessions.StartCleanup(sh.Context())
	server := web.NewServer(sh.Context(), sessions, orch, cfg, l)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.ProviderTimeout,
		IdleTimeout:  60 * time.Second,
	}
	if httpServer.WriteTimeout == 0 {
		httpServer.WriteTimeout = time.Minute
	}

	sh.Go(func(ctx context.Context) {
		l.Info("Starting web server on port %d", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Server error: %v", err)
			sh.Shutdown()
		}
	})

	<-sh.Context().Done()

	l.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		l.Error("Server shutdown error: %v", err)
	}
	sh.Wait()

	l.Info("Server stopped")
}
