package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/repository"
)

// Reader serves committed order state. It holds no locks.
type Reader struct {
	pool   *pgxpool.Pool
	orders *repository.Repo
}

// NewReader creates the order reader.
func NewReader(pool *pgxpool.Pool, orders *repository.Repo) *Reader {
	return &Reader{pool: pool, orders: orders}
}

// GetByID loads one order.
func (r *Reader) GetByID(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return r.orders.GetByID(ctx, r.pool, id)
}
