// Package customers provides the read and voucher surfaces the dispatch core
// needs from the customer base. Full customer CRUD lives elsewhere; intake
// only checks eligibility and the execution service only settles vouchers.
package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
)

// Customer is the subset of the customer row the dispatch core reads.
type Customer struct {
	ID             uuid.UUID
	Name           string
	Phone          string
	Address        *string
	Latitude       *float64
	Longitude      *float64
	VoucherBalance int
}

// Deliverable reports whether the customer has a usable address and
// coordinates, which intake requires before accepting an order.
func (c Customer) Deliverable() bool {
	return c.Address != nil && *c.Address != "" && c.Latitude != nil && c.Longitude != nil
}

// Repository reads customers and settles voucher debits.
type Repository struct{}

// NewRepository creates a customers repository.
func NewRepository() *Repository {
	return &Repository{}
}

// GetByPhone loads a customer by normalized phone.
func (r *Repository) GetByPhone(ctx context.Context, q db.Querier, phone string) (Customer, error) {
	var c Customer
	err := q.QueryRow(ctx,
		`SELECT id, name, phone, address, latitude, longitude, voucher_balance
		 FROM customers WHERE phone = $1`,
		phone,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Latitude, &c.Longitude, &c.VoucherBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, apperr.NotFound("customer not found")
		}
		return Customer{}, fmt.Errorf("get customer by phone: %w", err)
	}
	return c, nil
}

// LockVoucherBalance row-locks the customer and returns the current balance.
// Intake calls it before creating a voucher-paid order so the balance check
// and the order insert are atomic.
func (r *Repository) LockVoucherBalance(ctx context.Context, q db.Querier, customerID uuid.UUID) (int, error) {
	var balance int
	err := q.QueryRow(ctx,
		`SELECT voucher_balance FROM customers WHERE id = $1 FOR UPDATE`,
		customerID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.NotFound("customer not found")
		}
		return 0, fmt.Errorf("lock voucher balance: %w", err)
	}
	return balance, nil
}

// DebitVoucher settles the voucher for one delivered order exactly once.
// The ledger row's primary key is the guard: a retry that finds the row
// already present debits nothing. Returns whether a debit happened.
func (r *Repository) DebitVoucher(ctx context.Context, q db.Querier, orderID, customerID uuid.UUID, quantity int) (bool, error) {
	tag, err := q.Exec(ctx,
		`INSERT INTO voucher_debits (order_id, customer_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (order_id) DO NOTHING`,
		orderID, customerID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("insert voucher debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	res, err := q.Exec(ctx,
		`UPDATE customers
		 SET voucher_balance = voucher_balance - $2, updated_at = now()
		 WHERE id = $1 AND voucher_balance >= $2`,
		customerID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("debit voucher balance: %w", err)
	}
	if res.RowsAffected() == 0 {
		return false, apperr.Internal("voucher balance insufficient at settlement")
	}
	return true, nil
}
