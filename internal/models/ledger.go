package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one row of a reconstructed transaction history.
// PendingBalanceAfter is the amount still owed right after this payment.
type LedgerEntry struct {
	PaymentID           int64           `json:"payment_id"`
	TransactionID       string          `json:"transaction_id" example:"0042"`
	Date                time.Time       `json:"date"`
	AmountPaid          decimal.Decimal `json:"amount_paid" swaggertype:"number"`
	PendingBalanceAfter decimal.Decimal `json:"pending_balance_after" swaggertype:"number"`
	Reference           string          `json:"reference"`
}
