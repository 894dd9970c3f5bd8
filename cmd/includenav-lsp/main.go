package main

import (
	"errors"
	"expvar"
	"io"
	stlog "log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shehackedyou/includenav"
)

// App version (set via linker flags -ldflags="-X main.appVersion=...")
var appVersion = "dev"

const debugListenAddr = "localhost:6061"

func main() {
	logFile, err := os.OpenFile("includenav-lsp.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		stlog.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	// stdout carries the protocol, so logs go to stderr and the file only.
	logWriter := io.MultiWriter(os.Stderr, logFile)
	tempLogger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: slog.LevelInfo}))

	navigator, initErr := includenav.NewNavigator(tempLogger)
	if initErr != nil {
		tempLogger.Error("Failed to initialize Navigator service", "error", initErr)
		if !errors.Is(initErr, includenav.ErrConfig) || navigator == nil {
			os.Exit(1)
		}
	}
	defer func() {
		slog.Info("Closing Navigator service...")
		if err := navigator.Close(); err != nil {
			slog.Error("Error closing navigator", "error", err)
		}
	}()

	initialConfig := navigator.GetCurrentConfig()
	level, parseLevelErr := includenav.ParseLogLevel(initialConfig.LogLevel)
	if parseLevelErr != nil {
		level = slog.LevelInfo
		tempLogger.Warn("Invalid log level in config, using default 'info'", "config_level", initialConfig.LogLevel, "error", parseLevelErr)
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: levelVar, AddSource: true}))
	slog.SetDefault(logger)

	slog.Info("includenav LSP server starting...", "version", appVersion, "log_level", level.String())
	if initErr != nil {
		slog.Warn("Navigator initialized with configuration warnings", "error", initErr)
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
	startDebugServer()

	lspServer := includenav.NewServer(navigator, logger, appVersion, levelVar)
	includenav.PublishExpvarMetrics(lspServer)
	lspServer.Run(os.Stdin, os.Stdout)

	slog.Info("LSP server has shut down gracefully.")
}

// startDebugServer serves pprof, expvar and prometheus metrics.
func startDebugServer() {
	go func() {
		slog.Info("Starting debug server for pprof/expvar/metrics", "addr", debugListenAddr)
		debugMux := http.NewServeMux()
		debugMux.HandleFunc("/debug/pprof/", http.DefaultServeMux.ServeHTTP)
		debugMux.HandleFunc("/debug/pprof/cmdline", http.DefaultServeMux.ServeHTTP)
		debugMux.HandleFunc("/debug/pprof/profile", http.DefaultServeMux.ServeHTTP)
		debugMux.HandleFunc("/debug/pprof/symbol", http.DefaultServeMux.ServeHTTP)
		debugMux.HandleFunc("/debug/pprof/trace", http.DefaultServeMux.ServeHTTP)
		debugMux.Handle("/debug/vars", expvar.Handler())
		debugMux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(debugListenAddr, debugMux); err != nil {
			slog.Error("Debug server failed", "error", err)
		}
	}()
}
