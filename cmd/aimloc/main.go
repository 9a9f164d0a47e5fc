package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aimloc/server/internal/aim"
	"github.com/aimloc/server/internal/config"
	"github.com/aimloc/server/internal/core/event"
	coresys "github.com/aimloc/server/internal/core/system"
	"github.com/aimloc/server/internal/data"
	"github.com/aimloc/server/internal/fallback"
	"github.com/aimloc/server/internal/handler"
	"github.com/aimloc/server/internal/locate"
	gonet "github.com/aimloc/server/internal/net"
	"github.com/aimloc/server/internal/persist"
	"github.com/aimloc/server/internal/resolve"
	"github.com/aimloc/server/internal/scripting"
	"github.com/aimloc/server/internal/system"
	"github.com/aimloc/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("AIMLOC_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Audit sink: PostgreSQL when enabled, otherwise the trace log
	var (
		sink system.AuditSink
		db   *persist.DB
	)
	if cfg.Audit.Enabled {
		printSection("audit")
		sink, db, err = openAuditSink(cfg, log)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}
		fmt.Println()
	}

	// 4. Load data tables
	printSection("data")
	cells, err := data.LoadCellTypeTable(cfg.Data.CellTypes)
	if err != nil {
		return fmt.Errorf("cell types: %w", err)
	}
	printStat("cell types", cells.Count())
	regions, err := data.LoadRegionTable(cfg.Data.Regions, cells)
	if err != nil {
		return fmt.Errorf("regions: %w", err)
	}
	printStat("regions", regions.Count())

	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printOK("lua scripts loaded")
	fmt.Println()

	// 5. World
	printSection("world")
	worldState := world.NewState(cells, regions, log)
	printStat("resident chunks", worldState.Preload())
	fmt.Println()

	// 6. Resolution pipeline
	clock := aim.NewMonoClock()
	cache := aim.NewCache(cfg.Resolve.FreshnessWindow, clock)
	memory := fallback.New()
	shapes := locate.NewShapeSet()
	locator := locate.New(locate.Options{
		MaxDepth: cfg.Resolve.MaxDepth,
		Keywords: locate.DefaultKeywords,
		Describe: cfg.Resolve.DescribeShapes,
	}, shapes, log.Named("locate"), scripting.TableProbe{}, locate.DocProbe{}, locate.ReflectProbe{})
	sampler := aim.NewSampler(aim.SamplerConfig{
		Range:         cfg.Resolve.ProbeRange,
		SliceInterval: cfg.Resolve.SliceInterval,
	}, cache, worldState, nil, clock, log.Named("aim"))
	pipeline := resolve.NewPipeline(locator, cache, memory, log.Named("resolve"))

	var auditSys *system.AuditSystem
	if sink != nil {
		auditSys = system.NewAuditSystem(sink, cfg.Audit.Buffer, cfg.Audit.FlushTicks, log)
		pipeline.SetRecorder(auditSys)
		defer func() {
			if err := auditSys.Close(); err != nil {
				log.Error("audit close", zap.Error(err))
			}
		}()
	}

	bus := event.NewBus()
	event.Subscribe(bus, func(e event.LocationHinted) {
		memory.Remember(e.Hint)
	})

	// 7. Message handlers
	reg := gonet.NewRegistry(log)
	handler.RegisterAll(reg, &handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     worldState,
		Bus:       bus,
		Pipeline:  pipeline,
		Scripting: engine,
	})

	// 8. Network server
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, cfg.Network.WSPath, gonet.SessionOptions{
		InQueueSize:  cfg.Network.InQueueSize,
		OutQueueSize: cfg.Network.OutQueueSize,
		ReadTimeout:  cfg.Network.ReadTimeout,
		WriteTimeout: cfg.Network.WriteTimeout,
	}, reg, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	if db != nil {
		netServer.SetHealthCheck(db.Ping)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- netServer.Serve() }()

	// 9. Systems
	store := gonet.NewSessionStore()
	runner := coresys.NewRunner(log)
	runner.Register(system.NewInputSystem(netServer, reg, store, worldState, bus, cfg.Network.MaxMessagesPerTick, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewResidencySystem(worldState, cfg.World.ViewRadius, log.Named("world")))
	runner.Register(system.NewAimSampleSystem(sampler, worldState))
	runner.Register(system.NewOutputSystem(store))
	if auditSys != nil {
		runner.Register(auditSys)
	}
	runner.Register(system.NewCleanupSystem(worldState, bus, cache))

	sampler.OnSlice(func() {
		log.Debug("resolution state",
			zap.Int("sessions", store.Count()),
			zap.Int("actors", worldState.ActorCount()),
			zap.Int("resident_chunks", worldState.ResidentChunks()),
			zap.Int("cached_aims", cache.Len()),
			zap.Int("shapes_seen", shapes.Len()),
		)
	})

	// 10. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on ws://%s%s", netServer.Addr(), cfg.Network.WSPath))
	printReady(fmt.Sprintf("game loop started (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case err := <-serveErr:
			return fmt.Errorf("serve: %w", err)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := netServer.Shutdown(ctx); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
			for _, sess := range store.Raw() {
				sess.Close()
			}
			log.Info("server stopped")
			return nil
		}
	}
}

// openAuditSink returns the audit destination and, when it is PostgreSQL,
// the pool, which must outlive the sink's final flush.
func openAuditSink(cfg *config.Config, log *zap.Logger) (system.AuditSink, *persist.DB, error) {
	if !cfg.Database.Enabled {
		printOK(fmt.Sprintf("trace log in %s", filepath.Clean(cfg.Audit.Dir)))
		return persist.NewTraceLog(cfg.Audit.Dir, "resolve"), nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	return persist.NewAuditRepo(db), db, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
