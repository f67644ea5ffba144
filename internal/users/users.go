package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/validation"
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,min=3"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,min=10"`
	Role  string `json:"role" validate:"omitempty,oneof=customer admin"`
}

func (r *CreateUserRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Role == "" {
		r.Role = "customer"
	}
	return validation.Struct(r)
}

type Store interface {
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Count(ctx context.Context) (int64, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const uniqueViolation = "23505"

func (r *Repo) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var u User
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users(name, email, phone, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, phone, role, created_at, updated_at`,
		req.Name, req.Email, req.Phone, req.Role,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: insert user: %w", apperr.ErrPersistence, err)
	}
	return &u, nil
}

func (r *Repo) FindByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, email, phone, role, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select user: %w", apperr.ErrPersistence, err)
	}
	return &u, nil
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count users: %w", apperr.ErrPersistence, err)
	}
	return n, nil
}
