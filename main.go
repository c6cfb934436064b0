package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-shout-bot/bot"
	"telegram-shout-bot/config"
	"telegram-shout-bot/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Parse command-line flags
	verbose := flag.Bool("v", false, "Enable verbose logging (LevelInfo)")
	veryVerbose := flag.Bool("vv", false, "Enable very verbose logging (LevelDebug)")
	flag.Parse()

	setLogLevel(*verbose, *veryVerbose)

	slog.Debug("main: Command-line flags parsed", "verbose", *verbose, "very_verbose", *veryVerbose)

	if err := godotenv.Load(); err != nil {
		slog.Warn("main: Failed to load .env file", "error", err)
	} else {
		slog.Debug("main: Environment variables loaded from .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("main: Invalid configuration", "error", err)
		os.Exit(1)
	}

	dsn := cfg.DatabasePath
	if cfg.DatabaseDriver == config.DriverPostgres {
		dsn = cfg.DatabaseDSN
	}

	slog.Debug("main: Initializing storage", "driver", cfg.DatabaseDriver)
	store, err := storage.New(cfg.DatabaseDriver, dsn)
	if err != nil {
		slog.Error("main: Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cipher, err := storage.NewCipher(cfg.EncryptionKey)
	if err != nil {
		slog.Error("main: Failed to initialize cipher", "error", err)
		os.Exit(1)
	}

	prefs := storage.NewPreferences(store)
	archive := storage.NewArchive(store, cipher)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	slog.Debug("main: Initializing bot")
	shoutBot, err := bot.New(cfg.Token, prefs, archive, bot.Options{
		Emojis:     cfg.Emojis,
		IgnoreBots: cfg.IgnoreBots,
	})
	if err != nil {
		slog.Error("main: Failed to initialize bot", "error", err)
		os.Exit(1)
	}

	slog.Info("main: Starting bot...")
	if err := shoutBot.Start(); err != nil {
		slog.Error("main: Failed to start bot", "error", err)
		os.Exit(1)
	}
	slog.Info("main: Bot started successfully")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("main: Shutting down")
	shoutBot.Stop()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("main: Serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("main: Metrics server failed", "error", err)
	}
}

// setLogLevel configures the logging level based on the provided flags
func setLogLevel(verbose, veryVerbose bool) {
	logLevel := slog.LevelWarn // Default level
	if veryVerbose {
		logLevel = slog.LevelDebug
	} else if verbose {
		logLevel = slog.LevelInfo
	}

	// Configure structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Debug("main: Log level set to", "level", logLevel.String())
}
