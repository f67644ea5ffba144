package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
)

type Store interface {
	Create(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id int64) (*Product, error)
	FindAll(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const productColumns = `id, name, description, price, stock, image, categories, variants, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.Categories,
		&p.Variants, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperr.ErrPersistence, op, err)
}

func nonNil(p *Product) {
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if p.Variants == nil {
		p.Variants = map[string][]string{}
	}
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	nonNil(p)
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(name, description, price, stock, image, categories, variants)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.Price, p.Stock, p.Image, p.Categories, p.Variants,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return persistErr("insert product", err)
	}
	return nil
}

func (r *Repo) FindByID(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("select product", err)
	}
	return p, nil
}

func (r *Repo) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, persistErr("list products", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, persistErr("scan product", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate products", err)
	}
	return out, nil
}

// Update applies only the fields present in req.
func (r *Repo) Update(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET
			name        = COALESCE($2, name),
			description = COALESCE($3, description),
			price       = COALESCE($4, price),
			stock       = COALESCE($5, stock),
			image       = COALESCE($6, image),
			categories  = COALESCE($7, categories),
			variants    = COALESCE($8, variants),
			updated_at  = now()
		WHERE id=$1
		RETURNING `+productColumns,
		id, req.Name, req.Description, req.Price, req.Stock, req.Image, req.Categories, req.Variants))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("update product", err)
	}
	return p, nil
}

func (r *Repo) Delete(ctx context.Context, id int64) (bool, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return false, persistErr("delete product", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, persistErr("count products", err)
	}
	return n, nil
}
