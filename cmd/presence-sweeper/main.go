package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/config"
	"github.com/memorybox/coordination-server/internal/db"
	"github.com/memorybox/coordination-server/internal/logger"
	"github.com/memorybox/coordination-server/internal/presence"
	"github.com/memorybox/coordination-server/internal/realtime"
	redisclient "github.com/memorybox/coordination-server/internal/redis"
)

// The sweeper keeps stored presence honest: a crashed client leaves
// is_online=true forever, and only this job flips it back.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer log.Sync()

	log.Info("presence-sweeper starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.SweepInterval),
		zap.Duration("presence_ttl", cfg.PresenceTTL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.Connect(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	notifier := realtime.NewRedisNotifier(rdb, log)
	svc := presence.NewService(presence.NewPgRepository(pgPool), notifier, cfg.PresenceTTL, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	c := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if _, err := c.AddFunc(spec, func() {
		runOnce(rootCtx, svc, log)
	}); err != nil {
		log.Fatal("schedule sweep job", zap.Error(err))
	}
	c.Start()

	<-rootCtx.Done()
	log.Info("shutdown signal received, stopping presence sweeper")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn("sweep job did not finish before shutdown timeout")
	}
}

func runOnce(ctx context.Context, svc *presence.Service, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	flipped, err := svc.SweepStale(runCtx)
	if err != nil {
		log.Error("presence sweep error", zap.Error(err))
		return
	}

	log.Debug("presence sweep complete",
		zap.Int("flipped", flipped),
		zap.Duration("took", time.Since(start)),
	)
}
