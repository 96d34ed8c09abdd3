package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/customers"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/repository"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/db"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/phone"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/validator"
)

const phoneLockNamespace = "phone"

// IntakeRequest is a normalized-enough phone or manual order attempt.
type IntakeRequest struct {
	// ExternalCallID keys the idempotent call-id mode. Empty means manual
	// mode, which is idempotent per customer instead.
	ExternalCallID string `validate:"omitempty,max=128"`
	Phone          string `validate:"required"`
	Quantity       int    `validate:"required,gt=0"`
	AgentID        string `validate:"required,max=64"`
	// PaymentMethod defaults to DINHEIRO when empty.
	PaymentMethod string `validate:"omitempty,oneof=DINHEIRO PIX CARTAO VALE"`
}

// IntakeResult is the accepted order plus whether it was replayed.
type IntakeResult struct {
	Order    domain.Order
	Replayed bool
}

// Intake normalizes, validates and registers phone orders. All attempts for
// one customer serialize on an advisory lock keyed by normalized phone.
type Intake struct {
	pool      *pgxpool.Pool
	orders    *repository.Repo
	customers *customers.Repository
	publisher *dispatch.Publisher
	val       *validator.Validator
	log       *logger.Logger
}

// NewIntake creates the intake service.
func NewIntake(pool *pgxpool.Pool, orders *repository.Repo, cust *customers.Repository, publisher *dispatch.Publisher, val *validator.Validator, log *logger.Logger) *Intake {
	return &Intake{
		pool:      pool,
		orders:    orders,
		customers: cust,
		publisher: publisher,
		val:       val,
		log:       log.WithComponent("intake"),
	}
}

// RegisterOrder registers one order attempt.
//
// Call-id mode: a repeated call with the same ExternalCallID returns the
// first order unchanged, whatever else the retry carries. Manual mode: any
// open order of the customer is reused. Only a non-replayed success
// publishes PEDIDO_CRIADO.
func (s *Intake) RegisterOrder(ctx context.Context, req IntakeRequest) (IntakeResult, error) {
	if err := s.val.Struct(req); err != nil {
		return IntakeResult{}, apperr.Validation(err.Error())
	}
	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return IntakeResult{}, err
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	if req.PaymentMethod == "" {
		method = domain.PaymentCash
	}

	var result IntakeResult
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		// One intake at a time per customer phone, cluster-wide.
		if err := db.AcquireXactLock(ctx, tx, db.AdvisoryKey(phoneLockNamespace, normalized)); err != nil {
			return err
		}

		customer, err := s.customers.GetByPhone(ctx, tx, normalized)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("no customer registered for this phone; register the customer first")
			}
			return err
		}
		if !customer.Deliverable() {
			return apperr.Validation("customer has no delivery address or coordinates; complete the registration first")
		}

		if req.ExternalCallID != "" {
			existing, err := s.orders.GetByExternalCallID(ctx, tx, req.ExternalCallID)
			if err == nil {
				result = IntakeResult{Order: existing, Replayed: true}
				return nil
			}
			if !apperr.Is(err, apperr.KindNotFound) {
				return err
			}
		} else {
			open, found, err := s.orders.FindOpenByCustomer(ctx, tx, customer.ID)
			if err != nil {
				return err
			}
			if found {
				result = IntakeResult{Order: open, Replayed: true}
				return nil
			}
		}

		if method == domain.PaymentVoucher {
			balance, err := s.customers.LockVoucherBalance(ctx, tx, customer.ID)
			if err != nil {
				return err
			}
			if balance < req.Quantity {
				return apperr.Validation("voucher balance is below the requested quantity")
			}
		}

		params := repository.InsertParams{
			CustomerID:    customer.ID,
			Quantity:      req.Quantity,
			PaymentMethod: method,
			AgentID:       req.AgentID,
		}
		if req.ExternalCallID != "" {
			params.ExternalCallID = &req.ExternalCallID
		}

		order, inserted, err := s.orders.Insert(ctx, tx, params)
		if err != nil {
			return err
		}
		if !inserted {
			// Lost an insert race on external_call_id; the winner's order is
			// the canonical one.
			order, err = s.orders.GetByExternalCallID(ctx, tx, req.ExternalCallID)
			if err != nil {
				return err
			}
			result = IntakeResult{Order: order, Replayed: true}
			return nil
		}

		if err := s.publisher.Publish(ctx, tx, dispatch.EventOrderCreated, dispatch.AggregateOrder, order.ID.String(), map[string]any{
			"orderId":    order.ID.String(),
			"customerId": order.CustomerID.String(),
			"quantity":   order.Quantity,
		}); err != nil {
			return err
		}

		result = IntakeResult{Order: order, Replayed: false}
		return nil
	})
	if err != nil {
		return IntakeResult{}, err
	}

	s.log.Info("order intake",
		"order_id", result.Order.ID.String(),
		"replayed", result.Replayed,
		"payment_method", string(result.Order.PaymentMethod),
	)
	return result, nil
}
