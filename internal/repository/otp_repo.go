package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"auth-vault/internal/domain"
)

// OTPRepository persiste codigos pendientes, uno por (email, purpose).
type OTPRepository interface {
	Upsert(ctx context.Context, record domain.OTPRecord) error
	Get(ctx context.Context, email string, purpose domain.OTPPurpose) (domain.OTPRecord, error)
	// Consume borra el registro solo si el hash sigue siendo el mismo.
	Consume(ctx context.Context, email string, purpose domain.OTPPurpose, codeHash string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type PgOTPRepository struct {
	pool *pgxpool.Pool
}

func NewPgOTPRepository(pool *pgxpool.Pool) *PgOTPRepository {
	return &PgOTPRepository{pool: pool}
}

func (r *PgOTPRepository) Upsert(ctx context.Context, record domain.OTPRecord) error {
	const query = `
		INSERT INTO otps (email, purpose, otp_hash, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (email, purpose)
		DO UPDATE SET otp_hash = EXCLUDED.otp_hash,
		              expires_at = EXCLUDED.expires_at,
		              updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		normalizeEmail(record.Email),
		record.Purpose.String(),
		record.CodeHash,
		record.ExpiresAt,
		record.UpdatedAt,
	)
	return err
}

func (r *PgOTPRepository) Get(ctx context.Context, email string, purpose domain.OTPPurpose) (domain.OTPRecord, error) {
	const query = `
		SELECT email, purpose, otp_hash, expires_at, created_at, updated_at
		FROM otps
		WHERE email = $1 AND purpose = $2
	`
	var (
		rec     domain.OTPRecord
		purpRaw string
	)
	err := r.pool.QueryRow(ctx, query, normalizeEmail(email), purpose.String()).Scan(
		&rec.Email,
		&purpRaw,
		&rec.CodeHash,
		&rec.ExpiresAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return domain.OTPRecord{}, err
	}
	rec.Purpose, err = domain.ParseOTPPurpose(purpRaw)
	if err != nil {
		return domain.OTPRecord{}, err
	}
	return rec, nil
}

func (r *PgOTPRepository) Consume(ctx context.Context, email string, purpose domain.OTPPurpose, codeHash string) (bool, error) {
	const query = `
		DELETE FROM otps
		WHERE email = $1 AND purpose = $2 AND otp_hash = $3
	`
	tag, err := r.pool.Exec(ctx, query, normalizeEmail(email), purpose.String(), codeHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgOTPRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM otps WHERE expires_at < $1`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
