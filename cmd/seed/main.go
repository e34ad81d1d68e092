package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memorybox/coordination-server/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := ensureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	therapistIDs, err := seedTherapists(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed therapists: %v", err)
	}
	if err := seedCaregivers(context.Background(), pool, 200); err != nil {
		log.Fatalf("seed caregivers: %v", err)
	}
	if err := seedSlots(context.Background(), pool, therapistIDs, 20); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

// ensureSchema creates the tables the server expects. Statements are
// idempotent so the seeder can run against a fresh or existing database.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			degree TEXT NOT NULL DEFAULT '',
			specialization TEXT NOT NULL DEFAULT '',
			rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			photo_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS caregivers (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS patient_records (
			id UUID PRIMARY KEY,
			caregiver_id UUID NOT NULL REFERENCES caregivers(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			age INT NOT NULL,
			gender TEXT NOT NULL DEFAULT '',
			height TEXT NOT NULL DEFAULT '',
			weight TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL DEFAULT '',
			history TEXT NOT NULL DEFAULT '',
			blood_group TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS therapist_availability (
			id UUID PRIMARY KEY,
			therapist_id UUID NOT NULL,
			start_at TIMESTAMPTZ NOT NULL,
			mode TEXT NOT NULL CHECK (mode IN ('online', 'offline')),
			booked BOOLEAN NOT NULL DEFAULT false,
			booked_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (booked = (booked_by IS NOT NULL))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_availability_therapist
			ON therapist_availability (therapist_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_availability_open
			ON therapist_availability (start_at) WHERE booked = false`,
		`CREATE TABLE IF NOT EXISTS change_requests (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL CHECK (kind IN ('reschedule_request', 'therapist_notice', 'booking_confirmation')),
			therapist_id UUID NOT NULL,
			patient_id UUID NOT NULL,
			message TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'declined', 'acknowledged', 'ignored')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_change_requests_therapist
			ON change_requests (therapist_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_change_requests_patient
			ON change_requests (patient_id, status)`,
		`CREATE TABLE IF NOT EXISTS user_presence (
			user_id UUID PRIMARY KEY,
			is_online BOOLEAN NOT NULL DEFAULT false,
			last_seen TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			slot_id UUID,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func seedTherapists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d therapists", count)

	degrees := []string{
		"M.Sc. Clinical Psychology",
		"M.A. Counselling Psychology",
		"Ph.D. Neuropsychology",
		"M.Phil. Clinical Psychology",
		"M.D. Psychiatry",
	}
	specializations := []string{
		"Dementia care",
		"Geriatric counselling",
		"Cognitive rehabilitation",
		"Speech therapy",
		"Family therapy",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		degree := degrees[gofakeit.Number(0, len(degrees)-1)]
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		rate := float64(gofakeit.Number(500, 3000))

		_, err := tx.Exec(ctx, `
			INSERT INTO profiles (id, name, email, phone, degree, specialization, rate, photo_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, '', now(), now())
		`, id, name, gofakeit.Email(), gofakeit.Phone(), degree, spec, rate)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("therapists seeded")
	return ids, nil
}

func seedCaregivers(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d caregivers", count)

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()

			_, err := tx.Exec(ctx, `
				INSERT INTO caregivers (id, name, email, phone, address, photo_url, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, '', now(), now())
			`, id, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone(), gofakeit.Address().Address)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("caregivers seeded: %d/%d", end, count)
	}

	log.Println("caregivers seeded")
	return nil
}

func seedSlots(ctx context.Context, pool *pgxpool.Pool, therapistIDs []uuid.UUID, perTherapist int) error {
	log.Printf("seeding %d slots per therapist", perTherapist)

	modes := []string{"online", "offline"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, therapistID := range therapistIDs {
		for i := 0; i < perTherapist; i++ {
			// Spread slots over the next two weeks during working hours.
			day := gofakeit.Number(1, 14)
			hour := gofakeit.Number(9, 17)
			startAt := time.Now().UTC().Truncate(time.Hour).
				AddDate(0, 0, day).
				Add(time.Duration(hour) * time.Hour)
			mode := modes[gofakeit.Number(0, len(modes)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO therapist_availability (id, therapist_id, start_at, mode, booked, booked_by, created_at, updated_at)
				VALUES ($1, $2, $3, $4, false, NULL, now(), now())
			`, uuid.New(), therapistID, startAt, mode)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("slots seeded")
	return nil
}
