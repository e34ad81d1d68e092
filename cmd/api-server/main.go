package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/api"
	"github.com/memorybox/coordination-server/internal/booking"
	"github.com/memorybox/coordination-server/internal/config"
	"github.com/memorybox/coordination-server/internal/db"
	"github.com/memorybox/coordination-server/internal/logger"
	"github.com/memorybox/coordination-server/internal/mailbox"
	"github.com/memorybox/coordination-server/internal/notify"
	"github.com/memorybox/coordination-server/internal/presence"
	"github.com/memorybox/coordination-server/internal/profile"
	"github.com/memorybox/coordination-server/internal/realtime"
	redisclient "github.com/memorybox/coordination-server/internal/redis"
	"github.com/memorybox/coordination-server/internal/transcribe"
)

const version = "0.3.0"

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

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Connect Redis
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
	locker := redisclient.NewSlotLocker(rdb, cfg.LockTTL)

	profiles := profile.NewService(profile.NewPgRepository(pgPool))
	mailboxSvc := mailbox.NewService(mailbox.NewPgRepository(pgPool), notifier, log)
	presenceSvc := presence.NewService(presence.NewPgRepository(pgPool), notifier, cfg.PresenceTTL, log)
	bookingSvc := booking.NewService(
		booking.NewPgRepository(pgPool),
		locker,
		&caregiverDirectory{profiles: profiles},
		notifier,
		notify.NewLogMailer(log),
		log,
	)

	var transcriber transcribe.Transcriber
	if cfg.GeminiAPIKey != "" {
		t, err := transcribe.NewGeminiService(rootCtx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatal("gemini client error", zap.Error(err))
		}
		transcriber = t
	} else {
		log.Warn("GEMINI_API_KEY not set, transcription endpoint disabled")
	}

	handler := api.NewRouter(api.RouterConfig{
		Booking:     bookingSvc,
		Mailbox:     mailboxSvc,
		Presence:    presenceSvc,
		Profiles:    profiles,
		Transcriber: transcriber,
		PgPool:      pgPool,
		Redis:       rdb,
		Logger:      log,
		JWTSecret:   cfg.JWTSecret,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// caregiverDirectory adapts the profile store to the booking service's
// patient lookup.
type caregiverDirectory struct {
	profiles *profile.Service
}

func (d *caregiverDirectory) PatientInfo(ctx context.Context, id uuid.UUID) (string, string, error) {
	c, err := d.profiles.GetCaregiver(ctx, id)
	if err != nil {
		if errors.Is(err, profile.ErrCaregiverNotFound) {
			return "", "", booking.ErrPatientNotFound
		}
		return "", "", err
	}
	return c.Name, c.Email, nil
}
