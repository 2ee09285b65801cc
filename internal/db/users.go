package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("not_found")
	ErrDuplicate = errors.New("duplicate")
)

const uniqueViolation = "23505"

type User struct {
	ID           int64     `json:"user_id"`
	RUT          string    `json:"rut"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateUserInput struct {
	RUT          string
	FullName     string
	Email        string
	PasswordHash string
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, rut, full_name, email, password_hash, created_at, updated_at`

func (r *UserRepository) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	q := `
INSERT INTO users (rut, full_name, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, in.RUT, in.FullName, in.Email, in.PasswordHash))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetUserByRUT(ctx context.Context, rut string) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE rut = $1`
	return scanUser(r.pool.QueryRow(ctx, q, rut))
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.RUT, &u.FullName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, MapError(err)
	}
	return u, nil
}

// MapError translates driver errors into the package's sentinel errors.
func MapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
