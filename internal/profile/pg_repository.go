package profile

import (
	"context"
	"errors"
	"fmt"

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

const therapistColumns = `id, name, email, phone, degree, specialization, rate, photo_url, created_at, updated_at`

func scanTherapist(row pgx.Row) (*TherapistProfile, error) {
	var p TherapistProfile

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.Degree,
		&p.Specialization,
		&p.Rate,
		&p.PhotoURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanCaregiver(row pgx.Row) (*Caregiver, error) {
	var c Caregiver

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Address,
		&c.PhotoURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaregiverNotFound
		}
		return nil, err
	}

	return &c, nil
}

const patientColumns = `id, caregiver_id, name, age, gender, height, weight, stage, history, blood_group, address, phone, email, created_at, updated_at`

func scanPatient(row pgx.Row) (*PatientRecord, error) {
	var p PatientRecord

	err := row.Scan(
		&p.ID,
		&p.CaregiverID,
		&p.Name,
		&p.Age,
		&p.Gender,
		&p.Height,
		&p.Weight,
		&p.Stage,
		&p.History,
		&p.BloodGroup,
		&p.Address,
		&p.Phone,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) UpsertTherapist(ctx context.Context, p *TherapistProfile) (*TherapistProfile, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, name, email, phone, degree, specialization, rate, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    phone = EXCLUDED.phone,
		    degree = EXCLUDED.degree,
		    specialization = EXCLUDED.specialization,
		    rate = EXCLUDED.rate,
		    photo_url = EXCLUDED.photo_url,
		    updated_at = now()
		RETURNING `+therapistColumns+`
	`, p.ID, p.Name, p.Email, p.Phone, p.Degree, p.Specialization, p.Rate, p.PhotoURL)

	return scanTherapist(row)
}

func (r *PgRepository) GetTherapist(ctx context.Context, id uuid.UUID) (*TherapistProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+therapistColumns+`
		FROM profiles
		WHERE id = $1
	`, id)
	return scanTherapist(row)
}

func (r *PgRepository) ListTherapists(ctx context.Context) ([]TherapistProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+therapistColumns+`
		FROM profiles
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TherapistProfile
	for rows.Next() {
		p, err := scanTherapist(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpsertCaregiver(ctx context.Context, c *Caregiver) (*Caregiver, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO caregivers (id, name, email, phone, address, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    phone = EXCLUDED.phone,
		    address = EXCLUDED.address,
		    photo_url = EXCLUDED.photo_url,
		    updated_at = now()
		RETURNING id, name, email, phone, address, photo_url, created_at, updated_at
	`, c.ID, c.Name, c.Email, c.Phone, c.Address, c.PhotoURL)

	return scanCaregiver(row)
}

func (r *PgRepository) GetCaregiver(ctx context.Context, id uuid.UUID) (*Caregiver, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, address, photo_url, created_at, updated_at
		FROM caregivers
		WHERE id = $1
	`, id)
	return scanCaregiver(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *PatientRecord) (*PatientRecord, error) {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patient_records (id, caregiver_id, name, age, gender, height, weight, stage, history, blood_group, address, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING `+patientColumns+`
	`, id, p.CaregiverID, p.Name, p.Age, p.Gender, p.Height, p.Weight, p.Stage, p.History, p.BloodGroup, p.Address, p.Phone, p.Email)

	return scanPatient(row)
}

func (r *PgRepository) UpdatePatient(ctx context.Context, p *PatientRecord) (*PatientRecord, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patient_records
		SET name = $2,
		    age = $3,
		    gender = $4,
		    height = $5,
		    weight = $6,
		    stage = $7,
		    history = $8,
		    blood_group = $9,
		    address = $10,
		    phone = $11,
		    email = $12,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+patientColumns+`
	`, p.ID, p.Name, p.Age, p.Gender, p.Height, p.Weight, p.Stage, p.History, p.BloodGroup, p.Address, p.Phone, p.Email)

	return scanPatient(row)
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM patient_records
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete patient record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*PatientRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patient_records
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatientsByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]PatientRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patient_records
		WHERE caregiver_id = $1
		ORDER BY name ASC
	`, caregiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PatientRecord
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
