package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cccs/finance-portal/internal/audit"
	"github.com/cccs/finance-portal/internal/metrics"
	"github.com/cccs/finance-portal/internal/models"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
	publishTimeout  = 5 * time.Second
)

// maxAmount is the largest value a NUMERIC(12,2) column holds.
var maxAmount = decimal.RequireFromString("9999999999.99")

// PaymentPublisher receives committed payments.
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, event models.PaymentEvent) error
}

type PaymentService struct {
	db        *sql.DB
	publisher PaymentPublisher
	audit     *audit.Logger
	metrics   *metrics.Collector
	validator *ValidationHelper
	logger    *zap.Logger
	now       func() time.Time
}

// CreatePaymentRequest is the capture result reported by the client after
// PayPal approval.
// @Description Payment creation request structure
type CreatePaymentRequest struct {
	AccountID       int64            `json:"account_id" validate:"required,gt=0" example:"1"`
	AmountPaid      *decimal.Decimal `json:"amount_paid" validate:"required" swaggertype:"number" example:"500"`
	PaypalReference string           `json:"paypal_reference" validate:"max=100" example:"8AB12345CD678901E"`
}

// UpdatePaymentRequest corrects a recorded payment. Nil fields are left alone.
// @Description Payment update request structure
type UpdatePaymentRequest struct {
	AmountPaid      *decimal.Decimal `json:"amount_paid,omitempty" swaggertype:"number" example:"450"`
	PaypalReference *string          `json:"paypal_reference,omitempty" validate:"omitempty,max=100"`
}

func NewPaymentService(db *sql.DB, publisher PaymentPublisher, auditLogger *audit.Logger, collector *metrics.Collector, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		db:        db,
		publisher: publisher,
		audit:     auditLogger,
		metrics:   collector,
		validator: NewValidationHelper(),
		logger:    logger.Named("payments"),
		now:       time.Now,
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("Amount must be greater than zero")
	}
	if amount.GreaterThan(maxAmount) {
		return NewValidationError("Amount exceeds the maximum of 9999999999.99")
	}
	if !amount.Equal(amount.Round(2)) {
		return NewValidationError("Amount must have at most 2 decimal places")
	}
	return nil
}

// CreatePayment records a captured payment and decrements the account balance
// in the same transaction. Audit, metrics and the payment.recorded event only
// happen after commit.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	start := s.now()
	req.PaypalReference = strings.TrimSpace(req.PaypalReference)

	if err := s.validator.Validate(&req); err != nil {
		s.metrics.RecordPaymentFailure(KindValidation.String())
		return nil, err
	}
	if err := validateAmount(*req.AmountPaid); err != nil {
		s.metrics.RecordPaymentFailure(KindValidation.String())
		return nil, err
	}

	payment := &models.Payment{
		AccountID:       req.AccountID,
		AmountPaid:      *req.AmountPaid,
		PaypalReference: req.PaypalReference,
	}
	var balanceAfter decimal.Decimal

	err := withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if _, err := requireValidated(ctx, tx, req.AccountID, true); err != nil {
			return err
		}

		payment.PaidAt = s.now().UTC()
		err := tx.QueryRowContext(ctx, `
			INSERT INTO payments (account_id, amount_paid, paypal_reference, paid_at)
			VALUES ($1, $2, $3, $4)
			RETURNING payment_id`,
			payment.AccountID, payment.AmountPaid, payment.PaypalReference, payment.PaidAt,
		).Scan(&payment.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return NewValidationError("Payment reference already recorded")
			}
			return NewStorageError("Failed to record payment", err)
		}

		balanceAfter, err = applyPayment(ctx, tx, payment.AccountID, payment.AmountPaid, payment.PaidAt)
		return err
	})
	if err != nil {
		svcErr := AsError(err)
		s.metrics.RecordPaymentFailure(svcErr.Kind.String())
		if svcErr.Kind == KindStorage {
			s.logger.Error("payment ingestion failed", zap.Int64("account_id", req.AccountID), zap.Error(err))
		} else {
			s.logger.Info("payment rejected", zap.Int64("account_id", req.AccountID), zap.String("reason", svcErr.Message))
		}
		return nil, err
	}

	s.logger.Warn("payment capture trusted without provider verification",
		zap.Int64("payment_id", payment.ID),
		zap.String("paypal_reference", payment.PaypalReference))
	s.audit.LogPayment(audit.EventPaymentRecorded, payment.AccountID, payment.AccountID, payment.ID, payment.AmountPaid, payment.PaypalReference)
	s.metrics.RecordPayment(payment.AmountPaid, s.now().Sub(start))
	s.publish(ctx, payment, balanceAfter)

	s.logger.Info("payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("account_id", payment.AccountID),
		zap.String("amount", payment.AmountPaid.StringFixed(2)),
		zap.String("balance_after", balanceAfter.StringFixed(2)))
	return payment, nil
}

func (s *PaymentService) publish(ctx context.Context, payment *models.Payment, balanceAfter decimal.Decimal) {
	if s.publisher == nil {
		return
	}

	// the payment is committed, so a client disconnect must not drop the event
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.PublishPaymentRecorded(pubCtx, models.PaymentEvent{
		PaymentID:       payment.ID,
		AccountID:       payment.AccountID,
		AmountPaid:      payment.AmountPaid,
		PaypalReference: payment.PaypalReference,
		BalanceAfter:    balanceAfter,
		PaidAt:          payment.PaidAt,
	})
	if err != nil {
		s.logger.Error("failed to publish payment event", zap.Int64("payment_id", payment.ID), zap.Error(err))
	}
}

// GetPayment returns one payment. The viewer must own it (or be staff) and
// the owning account must be validated.
func (s *PaymentService) GetPayment(ctx context.Context, viewer *Claims, paymentID int64) (*models.Payment, error) {
	var p models.Payment
	var validated bool
	err := s.db.QueryRowContext(ctx, `
		SELECT p.payment_id, p.account_id, p.amount_paid, p.paypal_reference, p.paid_at, a.is_validated
		FROM payments p
		JOIN accounts a ON a.id = p.account_id
		WHERE p.payment_id = $1`, paymentID,
	).Scan(&p.ID, &p.AccountID, &p.AmountPaid, &p.PaypalReference, &p.PaidAt, &validated)
	if err != nil {
		return nil, notFoundOr(err, "Payment not found", "Failed to load payment")
	}
	if err := Authorize(viewer, p.AccountID); err != nil {
		return nil, err
	}
	if !validated {
		return nil, ErrAccountNotValidated
	}
	p.PaidAt = p.PaidAt.UTC()
	return &p, nil
}

// ListPayments returns every payment, newest first.
func (s *PaymentService) ListPayments(ctx context.Context, limit, offset int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	payments, err := queryPayments(ctx, s.db,
		`SELECT `+paymentColumns+` FROM payments ORDER BY paid_at DESC, payment_id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, NewStorageError("Failed to load payments", err)
	}
	return payments, nil
}

// ListAccountPayments returns the raw payment rows of one account, oldest first.
func (s *PaymentService) ListAccountPayments(ctx context.Context, accountID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := withTx(ctx, s.db, readOnlySnapshot, func(tx *sql.Tx) error {
		if _, err := requireValidated(ctx, tx, accountID, false); err != nil {
			return err
		}

		var err error
		payments, err = queryPayments(ctx, tx,
			`SELECT `+paymentColumns+` FROM payments WHERE account_id = $1 ORDER BY paid_at ASC, payment_id ASC`,
			accountID)
		if err != nil {
			return NewStorageError("Failed to load payments", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// UpdatePayment corrects amount and/or reference. A changed amount moves the
// account balance by the difference in the same transaction.
func (s *PaymentService) UpdatePayment(ctx context.Context, actorID, paymentID int64, req UpdatePaymentRequest) (*models.Payment, error) {
	if req.PaypalReference != nil {
		ref := strings.TrimSpace(*req.PaypalReference)
		req.PaypalReference = &ref
	}
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}
	if req.AmountPaid == nil && req.PaypalReference == nil {
		return nil, NewValidationError("No fields to update")
	}
	if req.AmountPaid != nil {
		if err := validateAmount(*req.AmountPaid); err != nil {
			return nil, err
		}
	}

	var updated *models.Payment
	var delta decimal.Decimal

	err := withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		current, err := lockPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}

		next := *current
		if req.AmountPaid != nil {
			next.AmountPaid = *req.AmountPaid
		}
		if req.PaypalReference != nil {
			next.PaypalReference = *req.PaypalReference
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE payments SET amount_paid = $1, paypal_reference = $2 WHERE payment_id = $3`,
			next.AmountPaid, next.PaypalReference, paymentID)
		if err != nil {
			if isUniqueViolation(err) {
				return NewValidationError("Payment reference already recorded")
			}
			return NewStorageError("Failed to update payment", err)
		}

		delta = next.AmountPaid.Sub(current.AmountPaid)
		if !delta.IsZero() {
			if _, err := applyPayment(ctx, tx, next.AccountID, delta, s.now().UTC()); err != nil {
				return err
			}
		}
		updated = &next
		return nil
	})
	if err != nil {
		if IsKind(err, KindStorage) {
			s.logger.Error("payment update failed", zap.Int64("payment_id", paymentID), zap.Error(err))
		}
		return nil, err
	}

	s.audit.LogPayment(audit.EventPaymentUpdated, actorID, updated.AccountID, updated.ID, updated.AmountPaid, updated.PaypalReference)
	s.logger.Info("payment updated",
		zap.Int64("payment_id", paymentID),
		zap.Int64("actor_id", actorID),
		zap.String("balance_delta", delta.Neg().StringFixed(2)))
	return updated, nil
}

// DeletePayment removes a payment and restores its amount to the balance.
func (s *PaymentService) DeletePayment(ctx context.Context, actorID, paymentID int64) error {
	var removed *models.Payment

	err := withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		current, err := lockPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE payment_id = $1`, paymentID); err != nil {
			return NewStorageError("Failed to delete payment", err)
		}

		if _, err := applyPayment(ctx, tx, current.AccountID, current.AmountPaid.Neg(), s.now().UTC()); err != nil {
			return err
		}
		removed = current
		return nil
	})
	if err != nil {
		if IsKind(err, KindStorage) {
			s.logger.Error("payment delete failed", zap.Int64("payment_id", paymentID), zap.Error(err))
		}
		return err
	}

	s.audit.LogPayment(audit.EventPaymentDeleted, actorID, removed.AccountID, removed.ID, removed.AmountPaid, removed.PaypalReference)
	s.logger.Info("payment deleted", zap.Int64("payment_id", paymentID), zap.Int64("actor_id", actorID))
	return nil
}

func lockPayment(ctx context.Context, tx *sql.Tx, paymentID int64) (*models.Payment, error) {
	p, err := scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1 FOR UPDATE`, paymentID))
	if err != nil {
		return nil, notFoundOr(err, "Payment not found", "Failed to load payment")
	}
	return p, nil
}

// applyPayment charges amount against the account balance (a negative amount
// restores it) and returns the new balance.
func applyPayment(ctx context.Context, tx *sql.Tx, accountID int64, amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance - $1, updated_at = $2 WHERE id = $3 RETURNING balance`,
		amount, now, accountID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, NewNotFoundError("Account not found")
	}
	if isNumericOverflow(err) {
		return decimal.Zero, NewValidationError("Amount would put the account balance out of range")
	}
	if err != nil {
		return decimal.Zero, NewStorageError("Failed to update account balance", err)
	}
	return balance, nil
}
