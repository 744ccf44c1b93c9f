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

	"github.com/joho/godotenv"

	"github.com/mbsoft/ohmy-tracks/internal/api"
	"github.com/mbsoft/ohmy-tracks/internal/config"
	"github.com/mbsoft/ohmy-tracks/internal/geocoding"
	"github.com/mbsoft/ohmy-tracks/internal/metrics"
	"github.com/mbsoft/ohmy-tracks/internal/optimizer"
	"github.com/mbsoft/ohmy-tracks/internal/parser"
	"github.com/mbsoft/ohmy-tracks/internal/storage/sqlite"
	"github.com/mbsoft/ohmy-tracks/internal/websocket"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// main is the application composition root.
func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	// Secrets come from .env in local runs; absence is fine in deployment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server failed", logger.Error(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	collector := metrics.NewCollector()
	wsServer := websocket.NewServer(log)
	defer wsServer.Close()

	// Geocode cache: prune stale entries at startup, persist on shutdown.
	geoCache := geocoding.NewCache(cfg.Cache.FilePath, log)
	if pruned := geoCache.PruneOldEntries(cfg.Cache.MaxAgeDays); pruned > 0 {
		log.Info("Pruned stale geocode cache entries", logger.Int("pruned", pruned))
	}
	collector.CacheSize.Set(float64(geoCache.Size()))

	geocoder := geocoding.NewClient(
		cfg.Geocoding.BaseURL,
		cfg.Geocoding.APIKey,
		cfg.Geocoding.AddressSearchScore,
		cfg.GeocodingTimeout(),
		log,
	)
	resolver := geocoding.NewResolver(
		geocoder,
		geoCache,
		geocoding.NewIntervalPolicy(cfg.RequestDelay()),
		cfg.Geocoding.ProximityRadiusM,
		func(pass, processed, succeeded, failed int) {
			wsServer.Broadcast("geocoding_progress", map[string]int{
				"pass":      pass,
				"processed": processed,
				"succeeded": succeeded,
				"failed":    failed,
			})
		},
		log,
	)

	optimizerClient := optimizer.NewClient(
		cfg.Optimization.BaseURL,
		cfg.Optimization.APIKey,
		cfg.PollInterval(),
		time.Duration(cfg.Optimization.PollTimeoutSecs)*time.Second,
		log,
	)
	optimizerSvc := optimizer.NewService(optimizerClient, cfg.Optimization, log)

	db, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to open upload database: %w", err)
	}
	defer db.Close()
	uploads, err := sqlite.NewUploadStorage(db, log)
	if err != nil {
		return fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	handler := api.NewHandler(
		cfg,
		parser.NewLayoutParser(cfg.Reports.EquipmentTypes, log),
		parser.NewHeaderParser(cfg.Reports.DayDates, log),
		resolver,
		geoCache,
		optimizerSvc,
		uploads,
		wsServer,
		collector,
		log,
	)
	router := api.NewRouter(handler, cfg, wsServer, collector, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		// Write timeout covers full upload processing, geocoding included.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown incomplete", logger.Error(err))
	}

	if err := geoCache.Save(); err != nil {
		log.Error("Failed to persist geocode cache", logger.Error(err))
	}
	return nil
}
