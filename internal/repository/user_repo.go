package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-vault/internal/domain"
	"auth-vault/internal/fieldcrypt"
)

// ErrDuplicateEmail se devuelve cuando el email ya existe en la tabla users.
var ErrDuplicateEmail = errors.New("duplicate email")

const uniqueViolation = "23505"

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Save(ctx context.Context, user domain.User) error
}

// PgUserRepository implementa UserRepository usando pgxpool. Los campos
// personales pasan por el codec justo antes de escribir y despues de leer.
type PgUserRepository struct {
	pool  *pgxpool.Pool
	codec fieldcrypt.Codec
}

func NewPgUserRepository(pool *pgxpool.Pool, codec fieldcrypt.Codec) *PgUserRepository {
	return &PgUserRepository{pool: pool, codec: codec}
}

const userColumns = `id, email, first_name, last_name, address, password_hash,
		email_verified, two_factor_enabled, last_login_at, created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	enc, err := r.encode(user)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query,
		enc.ID,
		normalizeEmail(enc.Email),
		enc.FirstName,
		enc.LastName,
		enc.Address,
		enc.PasswordHash,
		enc.EmailVerified,
		enc.TwoFactorEnabled,
		enc.LastLoginAt,
		enc.CreatedAt,
		enc.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, normalizeEmail(email)))
}

func (r *PgUserRepository) Save(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users
		SET first_name = $2,
		    last_name = $3,
		    address = $4,
		    password_hash = $5,
		    email_verified = $6,
		    two_factor_enabled = $7,
		    last_login_at = $8,
		    updated_at = $9
		WHERE id = $1
	`
	enc, err := r.encode(user)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, query,
		enc.ID,
		enc.FirstName,
		enc.LastName,
		enc.Address,
		enc.PasswordHash,
		enc.EmailVerified,
		enc.TwoFactorEnabled,
		enc.LastLoginAt,
		enc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListIDs devuelve los ids de todos los usuarios, ordenados por creacion.
func (r *PgUserRepository) ListIDs(ctx context.Context) ([]string, error) {
	const query = `
		SELECT id
		FROM users
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgUserRepository) scanOne(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Address,
		&u.PasswordHash,
		&u.EmailVerified,
		&u.TwoFactorEnabled,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return decodeUser(r.codec, u)
}

func (r *PgUserRepository) encode(u domain.User) (domain.User, error) {
	return encodeUser(r.codec, u)
}

func encodeUser(codec fieldcrypt.Codec, u domain.User) (domain.User, error) {
	var err error
	if u.FirstName, err = codec.Encrypt(u.FirstName); err != nil {
		return domain.User{}, fmt.Errorf("encrypt first name: %w", err)
	}
	if u.LastName, err = codec.Encrypt(u.LastName); err != nil {
		return domain.User{}, fmt.Errorf("encrypt last name: %w", err)
	}
	if u.Address, err = codec.Encrypt(u.Address); err != nil {
		return domain.User{}, fmt.Errorf("encrypt address: %w", err)
	}
	return u, nil
}

func decodeUser(codec fieldcrypt.Codec, u domain.User) (domain.User, error) {
	var err error
	if u.FirstName, err = codec.Decrypt(u.FirstName); err != nil {
		return domain.User{}, fmt.Errorf("decrypt first name: %w", err)
	}
	if u.LastName, err = codec.Decrypt(u.LastName); err != nil {
		return domain.User{}, fmt.Errorf("decrypt last name: %w", err)
	}
	if u.Address, err = codec.Decrypt(u.Address); err != nil {
		return domain.User{}, fmt.Errorf("decrypt address: %w", err)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
