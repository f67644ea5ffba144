package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
)

// Stats backs the dashboard. Revenue only counts orders whose payment
// has settled (processing or completed).
type Stats struct {
	TotalRevenue int64 `json:"totalRevenue"`
	OrderCount   int64 `json:"orderCount"`
	PendingCount int64 `json:"pendingCount"`
	ProductCount int64 `json:"productCount"`
	UserCount    int64 `json:"userCount"`
}

type StatsSource interface {
	Stats(ctx context.Context) (Stats, error)
}

type Repo struct{ DB *pgxpool.Pool }

var _ StatsSource = (*Repo)(nil)

func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT sum(total_amount)::bigint FROM orders WHERE status = ANY($1)), 0),
			(SELECT count(*) FROM orders),
			(SELECT count(*) FROM orders WHERE status = $2),
			(SELECT count(*) FROM products),
			(SELECT count(*) FROM users)`,
		[]string{string(orders.StatusProcessing), string(orders.StatusCompleted)},
		string(orders.StatusPendingPayment),
	).Scan(&s.TotalRevenue, &s.OrderCount, &s.PendingCount, &s.ProductCount, &s.UserCount)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: admin stats: %w", apperr.ErrPersistence, err)
	}
	return s, nil
}
