package presence

import (
	"context"
	"errors"
	"time"

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

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record

	err := row.Scan(
		&r.UserID,
		&r.Online,
		&r.LastSeen,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPresenceNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (r *PgRepository) Upsert(ctx context.Context, userID uuid.UUID, online bool, at time.Time) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO user_presence (user_id, is_online, last_seen, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET is_online = EXCLUDED.is_online,
		    last_seen = EXCLUDED.last_seen,
		    updated_at = EXCLUDED.updated_at
		RETURNING user_id, is_online, last_seen, updated_at
	`, userID, online, at)

	return scanRecord(row)
}

func (r *PgRepository) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT user_id, is_online, last_seen, updated_at
		FROM user_presence
		WHERE user_id = $1
	`, userID)
	return scanRecord(row)
}

func (r *PgRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, is_online, last_seen, updated_at
		FROM user_presence
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE user_presence
		SET is_online = false,
		    updated_at = now()
		WHERE is_online = true
		  AND last_seen < $1
		RETURNING user_id
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
