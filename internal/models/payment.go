package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a single captured payment against an account. Rows are only
// written through the payment service, which keeps accounts.balance in step.
type Payment struct {
	ID              int64           `json:"payment_id" db:"payment_id" example:"42"`
	AccountID       int64           `json:"account_id" db:"account_id" example:"1"`
	AmountPaid      decimal.Decimal `json:"amount_paid" db:"amount_paid" swaggertype:"number" example:"500"`
	PaypalReference string          `json:"paypal_reference" db:"paypal_reference" example:"8AB12345CD678901E"`
	PaidAt          time.Time       `json:"paid_at" db:"paid_at"`
}

// PaymentEvent is published once a payment has been committed.
type PaymentEvent struct {
	PaymentID       int64           `json:"payment_id"`
	AccountID       int64           `json:"account_id"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	PaypalReference string          `json:"paypal_reference"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	PaidAt          time.Time       `json:"paid_at"`
}
