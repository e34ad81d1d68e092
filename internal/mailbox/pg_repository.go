package mailbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanChangeRequest(row pgx.Row) (*ChangeRequest, error) {
	var cr ChangeRequest

	err := row.Scan(
		&cr.ID,
		&cr.Kind,
		&cr.TherapistID,
		&cr.PatientID,
		&cr.Message,
		&cr.Status,
		&cr.CreatedAt,
		&cr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return &cr, nil
}

func (r *PgRepository) Insert(ctx context.Context, cr *ChangeRequest) (*ChangeRequest, error) {
	id := cr.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO change_requests (id, kind, therapist_id, patient_id, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, kind, therapist_id, patient_id, message, status, created_at, updated_at
	`, id, cr.Kind, cr.TherapistID, cr.PatientID, cr.Message, cr.Status)

	return scanChangeRequest(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*ChangeRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, kind, therapist_id, patient_id, message, status, created_at, updated_at
		FROM change_requests
		WHERE id = $1
	`, id)
	return scanChangeRequest(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, kind Kind, from, to Status) (*ChangeRequest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE change_requests
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND kind = $3
		  AND status = $4
		RETURNING id, kind, therapist_id, patient_id, message, status, created_at, updated_at
	`, id, to, kind, from)

	return scanChangeRequest(row)
}

func (r *PgRepository) ListForTherapist(ctx context.Context, therapistID uuid.UUID) ([]ChangeRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, therapist_id, patient_id, message, status, created_at, updated_at
		FROM change_requests
		WHERE therapist_id = $1
		  AND kind IN ('reschedule_request', 'booking_confirmation')
		  AND status = 'pending'
		ORDER BY created_at DESC
	`, therapistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectChangeRequests(rows)
}

func (r *PgRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]ChangeRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, therapist_id, patient_id, message, status, created_at, updated_at
		FROM change_requests
		WHERE patient_id = $1
		  AND kind = 'therapist_notice'
		  AND status = 'pending'
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectChangeRequests(rows)
}

func collectChangeRequests(rows pgx.Rows) ([]ChangeRequest, error) {
	var result []ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cr)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
