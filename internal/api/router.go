package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/booking"
	"github.com/memorybox/coordination-server/internal/mailbox"
	"github.com/memorybox/coordination-server/internal/presence"
	"github.com/memorybox/coordination-server/internal/profile"
	"github.com/memorybox/coordination-server/internal/transcribe"
)

type RouterConfig struct {
	Booking     *booking.Service
	Mailbox     *mailbox.Service
	Presence    *presence.Service
	Profiles    *profile.Service
	Transcriber transcribe.Transcriber
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Logger      *zap.Logger
	JWTSecret   string
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		// Availability and booking
		r.Get("/therapists/{id}/slots", listTherapistSlotsHandler(cfg.Booking))
		r.Get("/therapists/{id}/availability", listAvailabilityHandler(cfg.Booking))
		r.With(RequireRole(RoleTherapist)).Post("/slots", createSlotHandler(cfg.Booking))
		r.With(RequireRole(RoleTherapist)).Patch("/slots/{id}", updateSlotHandler(cfg.Booking))
		r.With(RequireRole(RoleTherapist)).Delete("/slots/{id}", deleteSlotHandler(cfg.Booking))
		r.With(RequireRole(RoleCaregiver)).Post("/slots/{id}/book", bookSlotHandler(cfg.Booking))

		// Change-request mailbox
		r.With(RequireRole(RoleCaregiver)).Post("/change-requests", sendRescheduleRequestHandler(cfg.Mailbox))
		r.With(RequireRole(RoleTherapist)).Post("/notices", sendTherapistNoticeHandler(cfg.Mailbox))
		r.With(RequireRole(RoleTherapist)).Post("/change-requests/{id}/respond", respondToRequestHandler(cfg.Mailbox))
		r.Post("/change-requests/{id}/acknowledge", acknowledgeNoticeHandler(cfg.Mailbox))
		r.With(RequireRole(RoleTherapist)).Get("/inbox/therapist", therapistInboxHandler(cfg.Mailbox))
		r.With(RequireRole(RoleCaregiver)).Get("/inbox/patient", patientInboxHandler(cfg.Mailbox))

		// Presence
		r.Post("/presence/heartbeat", heartbeatHandler(cfg.Presence))
		r.Post("/presence/disconnect", disconnectHandler(cfg.Presence))
		r.Get("/presence", listPresenceHandler(cfg.Presence))
		r.Get("/presence/{id}", getPresenceHandler(cfg.Presence))

		// Profiles and patient records
		r.Get("/therapists", listTherapistsHandler(cfg.Profiles))
		r.Get("/therapists/{id}", getTherapistHandler(cfg.Profiles))
		r.With(RequireRole(RoleTherapist)).Put("/therapists/me", upsertTherapistHandler(cfg.Profiles))
		r.With(RequireRole(RoleCaregiver)).Put("/caregivers/me", upsertCaregiverHandler(cfg.Profiles))
		r.Get("/caregivers/{id}", getCaregiverHandler(cfg.Profiles))
		r.With(RequireRole(RoleCaregiver)).Post("/patients", createPatientHandler(cfg.Profiles))
		r.With(RequireRole(RoleCaregiver)).Put("/patients/{id}", updatePatientHandler(cfg.Profiles))
		r.With(RequireRole(RoleCaregiver)).Delete("/patients/{id}", deletePatientHandler(cfg.Profiles))
		r.With(RequireRole(RoleCaregiver)).Get("/patients", listPatientsHandler(cfg.Profiles))

		// Speech exercise
		r.Post("/transcribe", transcribeHandler(cfg.Transcriber))

		// Realtime change feed
		r.Get("/events", eventsHandler(cfg.Redis, cfg.Logger))
	})

	return r
}
