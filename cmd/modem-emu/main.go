package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/modem-emu/pkg/config"
	"github.com/dbehnke/modem-emu/pkg/database"
	"github.com/dbehnke/modem-emu/pkg/datanet"
	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/metrics"
	"github.com/dbehnke/modem-emu/pkg/registry"
	"github.com/dbehnke/modem-emu/pkg/schedule"
	"github.com/dbehnke/modem-emu/pkg/transport"
	"github.com/dbehnke/modem-emu/pkg/web"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("modem-emu %s (%s, built %s)\n", version, commit, buildTime)
		os.Exit(0)
	}
	web.SetVersionInfo(version, commit, buildTime)

	// Bootstrap logger until the configured one is known
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
	})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log.Info("Starting modem-emu",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.Int("instances", cfg.Emulator.Instances),
		logger.Int("base_port", cfg.Emulator.BasePort))

	if err := run(cfg, log); err != nil {
		log.Error("modem-emu stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("modem-emu stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Database, when NV data or call history live in SQLite
	var db *database.DB
	backend := strings.ToLower(cfg.Storage.Backend)
	if backend == "sqlite" || cfg.Storage.CallHistory {
		var err error
		db, err = database.NewDB(database.Config{Path: cfg.Storage.DatabasePath}, log)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close database", logger.Error(err))
			}
		}()
	}

	var stores registry.StoreOpener
	switch backend {
	case "sqlite":
		stores = registry.DBStores(database.NewNVRepository(db.GetDB()), cfg.Emulator.BasePort, log)
	default:
		stores = registry.FileStores(cfg.Storage.Dir, cfg.Emulator.BasePort, log)
	}
	var history *database.CallRecordRepository
	if cfg.Storage.CallHistory {
		history = database.NewCallRecordRepository(db.GetDB())
	}

	link, err := datanet.NewLink(cfg.DataNet.Link, log)
	if err != nil {
		return err
	}
	collector := metrics.NewCollector()

	// Host data networks start down
	var pool *datanet.Pool
	if cfg.DataNet.Count > 0 {
		pool, err = datanet.NewPool(datanet.Options{
			Prefix:  cfg.DataNet.Prefix,
			Count:   cfg.DataNet.Count,
			Subnet:  cfg.DataNet.Subnet,
			Gateway: cfg.DataNet.Gateway,
			DNS:     cfg.DataNet.DNS,
		})
		if err != nil {
			return fmt.Errorf("data networks: %w", err)
		}
		if err := datanet.Reset(pool, link); err != nil {
			log.Warn("Failed to bring data networks down", logger.Error(err))
		}
		collector.WithFreeNets(pool.Free)
	}

	hub := web.NewWebSocketHub(log)
	sched := schedule.NewTimerScheduler()
	defer sched.StopAll()

	reg, err := registry.New(registry.Options{
		BasePort:    cfg.Emulator.BasePort,
		Instances:   cfg.Emulator.Instances,
		TimeUpdates: cfg.Emulator.TimeUpdates,
		Scheduler:   sched,
		Pool:        pool,
		Link:        link,
		OpenStore:   stores,
		History:     history,
		Observer:    collector,
		Tap:         hub.Tap,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && err != context.Canceled {
				log.Error("Component stopped", logger.String("component", name), logger.Error(err))
			}
		}()
	}

	if cfg.Transport.TCP.Enabled {
		for _, inst := range reg.Instances() {
			srv := transport.NewTCPServer(cfg.Transport.TCP.Host, cfg.Transport.TCP.Port+inst.ID, inst.ID, inst, log)
			start(fmt.Sprintf("tcp.%d", inst.ID), srv.Start)
		}
	}

	for _, sc := range cfg.Transport.Serial {
		inst, err := reg.Get(sc.Instance)
		if err != nil {
			return fmt.Errorf("serial %s: %w", sc.Device, err)
		}
		l := transport.NewSerialLink(sc.Device, sc.Baud, inst.ID, inst, log)
		start("serial."+sc.Device, l.Start)
	}

	if cfg.Web.Enabled {
		srv := web.NewServer(cfg.Web, reg, hub, log)
		if cfg.Transport.WebSocket.Enabled {
			lookup := func(id int) (transport.Endpoint, bool) {
				inst, err := reg.Get(id)
				if err != nil {
					return nil, false
				}
				return inst, true
			}
			srv.WithGuestTransport(transport.WebSocketHandler(ctx, lookup, log))
		}
		start("web", srv.Start)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		srv := metrics.NewPrometheusServer(
			metrics.PrometheusConfig{
				Enabled: cfg.Metrics.Prometheus.Enabled,
				Port:    cfg.Metrics.Prometheus.Port,
				Path:    cfg.Metrics.Prometheus.Path,
			},
			collector,
			log,
		)
		start("metrics", srv.Start)
	}

	if history != nil && cfg.Storage.HistoryRetention > 0 {
		start("history", func(ctx context.Context) error {
			return pruneHistory(ctx, reg, cfg.Storage.HistoryRetention, log)
		})
	}

	for _, inst := range reg.Instances() {
		log.Info("Modem ready",
			logger.Int("instance", inst.ID),
			logger.String("number", inst.Modem.Number()))
	}

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
	return nil
}

// pruneHistory drops expired call records at startup and then hourly.
func pruneHistory(ctx context.Context, reg *registry.Registry, retention time.Duration, log *logger.Logger) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if _, err := reg.PruneHistory(time.Now().Add(-retention)); err != nil {
			log.Warn("Failed to prune call history", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
