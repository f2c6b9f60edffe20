package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"jobmill/internal/config"
	"jobmill/internal/engine"
	"jobmill/internal/jobs"
	"jobmill/internal/registrar"
	"jobmill/internal/store"
	"jobmill/internal/transport/telegram"
	"jobmill/internal/trigger"
	"jobmill/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	boot := logx.NewConsole("info")

	mgr := config.NewManager(cfgPath, boot)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logCfg(cfg.Logging))
	defer logSvc.Close()

	st, err := openStore(cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if cfg.Seed != "" {
		w, ok := st.(store.Writer)
		if !ok {
			return fmt.Errorf("store driver %q cannot be seeded", cfg.Store.Driver)
		}
		if err := store.Seed(ctx, w, cfg.Seed, log); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
	}

	registry := jobs.NewRegistry()
	if err := jobs.RegisterBuiltins(registry, log.With(logx.String("comp", "jobs"))); err != nil {
		return err
	}

	engCfg, err := engineCfg(cfg.Engine)
	if err != nil {
		return err
	}
	eng := engine.New(engCfg, log.With(logx.String("comp", "engine")))

	// One synchronous reconciliation pass before anything fires. Failures
	// degrade individual jobs only; the process keeps serving the rest.
	reg := registrar.New(st, eng, registry, log.With(logx.String("comp", "registrar")))
	report, err := reg.Run(ctx)
	if err != nil {
		return fmt.Errorf("registration pass: %w", err)
	}
	for _, f := range report.Failures() {
		log.Warn("degraded job",
			logx.String("tenant", f.TenantID),
			logx.String("job", f.JobID),
			logx.Int("version", f.Version),
			logx.Err(f.Err))
	}

	eng.Start(ctx)

	trig := trigger.New(eng, log.With(logx.String("comp", "trigger")))

	if tc := cfg.Telegram; tc != nil && tc.Enabled {
		pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", tc.PollTimeout)
		if err != nil {
			return err
		}
		bot, err := telegram.New(telegram.Config{
			Token:          tc.Token,
			Admins:         tc.Admins,
			PollTimeout:    pollTimeout,
			SendRatePerSec: tc.SendRatePerSec,
		}, trig, eng, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		bot.Start(ctx)
	}

	// Config hot reload only re-applies logging; schedules come from the
	// store and are picked up on the next process start.
	go func() {
		err := mgr.Watch(ctx, func(c *config.Config) {
			logSvc.Apply(logCfg(c.Logging))
		})
		if err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		log.Debug("sd_notify ready sent")
	}

	log.Info("jobmill running",
		logx.Int("registered", report.Registered),
		logx.Int("skipped", report.Skipped),
		logx.Int("failed", report.Failed))

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	eng.Stop(stopCtx)
	return nil
}

func logCfg(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
}

func openStore(sc config.StoreConfig, log logx.Logger) (store.Store, error) {
	busy, err := config.ParseDurationField("store.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return store.Open(store.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "store")))
}

func engineCfg(ec config.EngineConfig) (engine.Config, error) {
	timeout, err := config.ParseDurationField("engine.default_timeout", ec.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Workers:        ec.Workers,
		QueueSize:      ec.QueueSize,
		DefaultTimeout: timeout,
		Timezone:       ec.Timezone,
	}, nil
}
