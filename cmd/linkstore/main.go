package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/farcasterxyz/linkstore/pkg/config"
	"github.com/farcasterxyz/linkstore/pkg/config/banner"
	"github.com/farcasterxyz/linkstore/pkg/linkstore"
	"github.com/farcasterxyz/linkstore/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load(".env")

	logger.Init("", "")
	defer logger.Sync()

	var configFlag string
	flag.StringVar(&configFlag, "config", "", "path to a YAML config file")
	flag.Parse()
	configFlagSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configFlagSet = true
		}
	})

	cfgPath := config.ResolveConfigPath(configFlag, configFlagSet)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("config_load_failed: %v", err)
	}
	config.SetRuntime(cfg)
	logger.Init(cfg.Logging.Level, cfg.Logging.Sink)

	banner.Print(cfg, version)
	config.LogSummary(cfg)

	kv, err := linkstore.NewPebbleKV(cfg.Storage.DBPath, cfg.Storage.DisableWAL, cfg.Storage.CacheSize.Int64())
	if err != nil {
		logger.Fatalf("pebble_open_failed: %v", err)
	}
	defer kv.Close()

	broadcast := linkstore.NewBroadcastEventHandler()
	var events linkstore.EventHandler = broadcast
	if cfg.Logging.AuditLogPath != "" {
		if err := logger.AttachAuditSink(cfg.Logging.AuditLogPath); err != nil {
			logger.Fatalf("audit_sink_failed: %v", err)
		}
		events = linkstore.NewMultiEventHandler(broadcast, linkstore.NewAuditEventHandler(logger.Audit))
	}

	var limiter *linkstore.FidLimiterPool
	if cfg.RateLimit.RPS > 0 {
		limiter = linkstore.NewFidLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TTL.Duration(), cfg.RateLimit.CleanupPeriod.Duration())
	}

	store := linkstore.New(kv, events, cfg.Link.PruneSizeLimit, cfg.Link.PageSizeMax, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Prune.Enabled {
		scheduler := linkstore.NewPruneScheduler(store, cfg.Prune.Cron)
		cancelScheduler := scheduler.Start(ctx)
		defer cancelScheduler()
	}

	logger.Info("linkstore_started", "version", version, "commit", commit)

	<-ctx.Done()
	logger.Info("linkstore_shutting_down")
	fmt.Fprintln(os.Stderr, "linkstore: shutdown complete")
}
