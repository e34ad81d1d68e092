package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memorybox/coordination-server/internal/mailbox"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const slotColumns = `id, therapist_id, start_at, mode, booked, booked_by, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var bookedBy *uuid.UUID

	err := row.Scan(
		&s.ID,
		&s.TherapistID,
		&s.StartAt,
		&s.Mode,
		&s.Booked,
		&bookedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.BookedBy = bookedBy
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateSlot(ctx context.Context, therapistID uuid.UUID, startAt time.Time, mode SlotMode) (*Slot, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO therapist_availability (id, therapist_id, start_at, mode, booked, booked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, NULL, now(), now())
		RETURNING `+slotColumns+`
	`, id, therapistID, startAt, mode)

	return scanSlot(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM therapist_availability
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) UpdateSlotDetails(ctx context.Context, id uuid.UUID, startAt time.Time, mode SlotMode) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE therapist_availability
		SET start_at = $2,
		    mode = $3,
		    updated_at = now()
		WHERE id = $1
		  AND booked = false
		RETURNING `+slotColumns+`
	`, id, startAt, mode)

	return scanSlot(row)
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM therapist_availability
		WHERE id = $1
		  AND booked = false
		RETURNING `+slotColumns+`
	`, id)

	return scanSlot(row)
}

func (r *PgRepository) ListByTherapist(ctx context.Context, therapistID uuid.UUID) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM therapist_availability
		WHERE therapist_id = $1
		ORDER BY start_at ASC
	`, therapistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgRepository) ListAvailable(ctx context.Context, therapistID uuid.UUID, after time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM therapist_availability
		WHERE therapist_id = $1
		  AND booked = false
		  AND start_at > $2
		ORDER BY start_at ASC
	`, therapistID, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

// ClaimSlot performs the first-writer-wins claim and the confirmation insert
// in a single transaction, so a booked-but-unnotified slot cannot persist.
func (r *PgRepository) ClaimSlot(ctx context.Context, slotID, patientID uuid.UUID, confirmation *mailbox.ChangeRequest) (*Slot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE therapist_availability
		SET booked = true,
		    booked_by = $2,
		    updated_at = now()
		WHERE id = $1
		  AND booked = false
		RETURNING `+slotColumns+`
	`, slotID, patientID)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO change_requests (id, kind, therapist_id, patient_id, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, confirmation.ID, confirmation.Kind, confirmation.TherapistID, confirmation.PatientID, confirmation.Message, confirmation.Status)
	if err != nil {
		return nil, fmt.Errorf("insert booking confirmation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}

	return slot, nil
}

func (r *PgRepository) DeleteSlotWithNotice(ctx context.Context, id uuid.UUID, notice *mailbox.ChangeRequest) (*Slot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		DELETE FROM therapist_availability
		WHERE id = $1
		  AND booked = true
		  AND booked_by = $2
		RETURNING `+slotColumns+`
	`, id, notice.PatientID)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO change_requests (id, kind, therapist_id, patient_id, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, notice.ID, notice.Kind, notice.TherapistID, notice.PatientID, notice.Message, notice.Status)
	if err != nil {
		return nil, fmt.Errorf("insert cancellation notice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete tx: %w", err)
	}

	return slot, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, slot_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
