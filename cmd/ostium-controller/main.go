package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/config"
	"github.com/ostium-io/ostium/internal/diag"
	"github.com/ostium-io/ostium/internal/diagapi"
	"github.com/ostium-io/ostium/internal/ostium/service"
	redisstore "github.com/ostium-io/ostium/internal/ostium/store/redis"
	"github.com/ostium-io/ostium/internal/peripheral"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("ostium controller starting",
		zap.String("door_id", cfg.Controller.DoorID),
		zap.String("env", cfg.Controller.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.Controller.Timezone)
	if err != nil {
		logger.Warn("bad timezone, using local", zap.String("timezone", cfg.Controller.Timezone))
		loc = time.Local
	}
	clock := service.NewClock(loc)

	// Peripherals. A door that cannot read credentials or show messages
	// must not run at all; it parks in a safe halt until the operator
	// intervenes.
	var display peripheral.Display
	if cfg.Controller.DisplayDevice == "" {
		display = peripheral.NewLogDisplay(logger)
	} else {
		d, err := peripheral.OpenSerialDisplay(cfg.Controller.DisplayDevice, logger)
		if err != nil {
			safeHalt(ctx, logger, nil, "display device unavailable", err)
			return
		}
		defer d.Close()
		display = d
	}

	reader, err := peripheral.OpenSerialReader(cfg.Controller.ReaderDevice, logger)
	if err != nil {
		safeHalt(ctx, logger, display, "reader device unavailable", err)
		return
	}
	defer reader.Close()

	// Local diagnostic journal.
	db, err := diag.Open(ctx, diag.Config{Path: cfg.Diag.Path})
	if err != nil {
		safeHalt(ctx, logger, display, "diagnostic journal unavailable", err)
		return
	}
	defer db.Close()
	queue := diag.NewWriteQueue(db)
	defer queue.Close()
	journal := diag.NewJournal(db, queue)

	pruner := diag.NewJournalPruner(journal, diag.PrunerConfig{
		RetentionDays: cfg.Diag.RetentionDays,
		IntervalHours: cfg.Diag.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	watchdog := peripheral.NewWatchdog(cfg.Controller.WatchdogTimeout, logger)
	// An idle door blocks in the reader; its poll loop has to keep the
	// watchdog fed.
	reader.OnPoll = watchdog.Feed

	remote := redisstore.New(redisstore.Options{
		Addr:               cfg.Redis.Addr,
		Password:           cfg.Redis.Password,
		DB:                 cfg.Redis.DB,
		DialTimeout:        cfg.Redis.DialTimeout,
		OpTimeout:          cfg.Redis.OpTimeout,
		OnReconnectAttempt: watchdog.Feed,
	}, logger)
	defer remote.Close()

	if cfg.Controller.Env == "dev" {
		if err := remote.SeedDev(ctx); err != nil {
			logger.Warn("dev seed failed", zap.Error(err))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	link := peripheral.NewProbeLink(cfg.Controller.LinkProbeAddr, cfg.Redis.DialTimeout, logger)
	link.OnAttempt = watchdog.Feed

	audit := service.NewAuditLogger(remote, journal, clock, cfg.Policy.FaultSuppression, metrics, logger)
	health := service.NewHealthManager(link, remote, display, audit, service.HealthPolicy{
		LinkFailureThreshold:    cfg.Policy.LinkFailureThreshold,
		BackendFailureThreshold: cfg.Policy.BackendFailureThreshold,
	}, metrics, logger)
	audit.BindHealth(health.Healthy)

	// Shared with the diagnostic API, which reports the streak on healthz.
	escalate := service.NewEscalationTracker(cfg.Policy.EscalationThreshold)

	controller := service.NewController(service.Dependencies{
		Reader:    reader,
		Display:   display,
		Clock:     clock,
		Debounce:  service.NewDebounce(cfg.Policy.DebounceWindow),
		Health:    health,
		Resolver:  service.NewResolver(remote, cfg.Policy.BypassIdentities, logger),
		Engine: service.NewDecisionEngine(service.DecisionPolicy{
			EntryGrace: cfg.Policy.EntryGrace,
			ExitGrace:  cfg.Policy.ExitGrace,
		}),
		Escalate:  escalate,
		Audit:     audit,
		Directory: remote,
		Journal:   journal,
		Metrics:   metrics,
		Feed:      watchdog.Feed,
		Logger:    logger,
	})

	srv := diagapi.NewServer(diagapi.Dependencies{
		Logger:   logger,
		Addr:     cfg.HTTP.Addr,
		Health:   health,
		Escalate: escalate,
		Journal:  journal,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	go func() {
		logger.Info("diagnostic api listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("diagnostic api failed", zap.Error(err))
			stop()
		}
	}()

	watchdog.Start(ctx)

	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("controller stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("diagnostic api shutdown", zap.Error(err))
	}
	logger.Info("ostium controller stopped")
}

// safeHalt parks a controller that failed hard during init. The door stays
// shut, the failure stays visible, and the process stays alive so the
// service manager does not thrash restarting something that cannot start.
func safeHalt(ctx context.Context, logger *zap.Logger, display peripheral.Display, msg string, err error) {
	logger.Error("fatal init fault, halting", zap.String("fault", msg), zap.Error(err))
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		if display != nil {
			display.Show("Out of service", "Call support", 0)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Error("still halted", zap.String("fault", msg))
		}
	}
}
