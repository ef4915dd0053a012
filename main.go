package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/ai"
	"github.com/YuujiKamura/tonsuu-checker/internal/calc"
	"github.com/YuujiKamura/tonsuu-checker/internal/camera"
	"github.com/YuujiKamura/tonsuu-checker/internal/config"
	"github.com/YuujiKamura/tonsuu-checker/internal/ensemble"
	"github.com/YuujiKamura/tonsuu-checker/internal/grade"
	"github.com/YuujiKamura/tonsuu-checker/internal/health"
	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
	"github.com/YuujiKamura/tonsuu-checker/internal/motion"
	"github.com/YuujiKamura/tonsuu-checker/internal/pipeline"
	"github.com/YuujiKamura/tonsuu-checker/internal/refdata"
	"github.com/YuujiKamura/tonsuu-checker/internal/service"
	"github.com/YuujiKamura/tonsuu-checker/internal/storage"
	"github.com/YuujiKamura/tonsuu-checker/internal/store"
	"github.com/YuujiKamura/tonsuu-checker/internal/video"
	"github.com/YuujiKamura/tonsuu-checker/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting tonsuu-checker",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reference tables: built-in by default, file override for site
	// specific calibration.
	var tables *refdata.Tables
	if cfg.App.SpecsFile != "" {
		tables, err = refdata.LoadFile(cfg.App.SpecsFile)
	} else {
		tables, err = refdata.Load()
	}
	if err != nil {
		log.Error("Failed to load reference tables", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		log.Error("Failed to open database", "error", err, "path", cfg.Storage.DatabasePath)
		os.Exit(1)
	}
	defer st.Close()

	snapshots, err := storage.NewSnapshots(storage.SnapshotsConfig{
		Dir:     cfg.Storage.SnapshotsDir,
		Quality: cfg.Camera.CaptureQuality,
	}, log)
	if err != nil {
		log.Error("Failed to initialize snapshot storage", "error", err)
		os.Exit(1)
	}

	calculator := calc.New(tables)
	classifier := grade.New(tables)
	aggregator := ensemble.NewAggregator(calculator, log)

	provider := ai.NewClient(ai.ClientConfig{
		ServiceURL: cfg.Provider.ServiceURL,
		Model:      cfg.Provider.Model,
		APIKey:     cfg.Provider.APIKey,
		Timeout:    cfg.Provider.Timeout,
	}, tables, log)
	runner := ensemble.NewRunner(provider, log)

	sampler := motion.NewSampler(motion.Config{
		GridWidth:       cfg.Motion.GridWidth,
		GridHeight:      cfg.Motion.GridHeight,
		LumaDelta:       uint8(cfg.Motion.LumaDelta),
		Threshold:       cfg.Motion.Threshold,
		NormalInterval:  cfg.Motion.NormalInterval,
		WidenedInterval: cfg.Motion.WidenedInterval,
	}, log)

	// Camera is optional: without one the appliance serves the HTTP API
	// only.
	var feed *camera.FeedMonitor
	var grabber *video.Grabber
	if cfg.Camera.URL != "" {
		feed = camera.NewFeedMonitor(camera.FeedConfig{
			URL:               cfg.Camera.URL,
			Username:          cfg.Camera.Username,
			Password:          cfg.Camera.Password,
			ReconnectInterval: cfg.Camera.ReconnectInterval,
			StaleAfter:        cfg.Camera.StaleAfter,
		}, log)

		grabber, err = video.NewGrabber(video.GrabberConfig{
			FFmpegPath: cfg.Camera.FFmpegPath,
			Quality:    cfg.Camera.CaptureQuality,
		}, log)
		if err != nil {
			log.Error("Failed to initialize frame grabber", "error", err)
			os.Exit(1)
		}
	}

	analyzer := pipeline.NewAnalyzer(cfg, pipeline.Deps{
		Feed:       feed,
		Grabber:    grabber,
		Sampler:    sampler,
		Runner:     runner,
		Aggregator: aggregator,
		Classifier: classifier,
		Tables:     tables,
		Store:      st,
		Snapshots:  snapshots,
	}, log)

	webServer := web.NewServer(&cfg.Web, log)
	webServer.SetVersion(version)
	webServer.SetDependencies(analyzer, st, feed)

	retention := storage.NewRetention(st, snapshots, cfg.Storage.RetentionDays, log)

	svcMgr := service.NewManager(log)
	if feed != nil {
		svcMgr.Register(feed)
	}
	svcMgr.Register(analyzer)
	svcMgr.Register(retention)
	svcMgr.Register(webServer)

	healthMgr := health.NewManager(log, svcMgr)
	healthMgr.RegisterChecker(health.NewDatabaseChecker(cfg.Storage.DatabasePath))
	healthMgr.RegisterChecker(health.NewProviderChecker(cfg.Provider.ServiceURL))
	healthMgr.RegisterChecker(health.NewStorageChecker(cfg.Storage.SnapshotsDir))
	if feed != nil {
		healthMgr.RegisterChecker(health.NewFeedChecker(feed))
	}

	if err := healthMgr.Start(ctx, &cfg.Health); err != nil {
		log.Error("Failed to start health check server", "error", err)
		os.Exit(1)
	}

	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := healthMgr.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping health check server", "error", err)
	}

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}
