package services

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cccs/finance-portal/internal/models"
)

// LedgerService reconstructs an account's running-balance history.
type LedgerService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewLedgerService(db *sql.DB, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		db:     db,
		logger: logger.Named("ledger"),
	}
}

// History loads the account and its payments from one snapshot and replays
// them into ledger entries, most recent first.
func (s *LedgerService) History(ctx context.Context, accountID int64) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry

	err := withTx(ctx, s.db, readOnlySnapshot, func(tx *sql.Tx) error {
		account, err := requireValidated(ctx, tx, accountID, false)
		if err != nil {
			return err
		}

		payments, err := queryPayments(ctx, tx,
			`SELECT `+paymentColumns+` FROM payments WHERE account_id = $1 ORDER BY paid_at ASC, payment_id ASC`,
			accountID)
		if err != nil {
			return NewStorageError("Failed to load payments", err)
		}

		entries = BuildLedger(payments, account.Balance)
		return nil
	})
	if err != nil {
		if IsKind(err, KindStorage) {
			s.logger.Error("history reconstruction failed", zap.Int64("account_id", accountID), zap.Error(err))
		}
		return nil, err
	}
	return entries, nil
}

// BuildLedger replays payments against the current balance. The balance
// before the first payment is currentBalance plus everything paid; each
// payment then lowers the running balance. Entries come back most recent
// first, so the first entry always carries currentBalance. The input slice
// is not modified.
func BuildLedger(payments []models.Payment, currentBalance decimal.Decimal) []models.LedgerEntry {
	ordered := make([]models.Payment, len(payments))
	copy(ordered, payments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].PaidAt.Equal(ordered[j].PaidAt) {
			return ordered[i].PaidAt.Before(ordered[j].PaidAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	totalPaid := decimal.Zero
	for _, p := range ordered {
		totalPaid = totalPaid.Add(p.AmountPaid)
	}

	running := currentBalance.Add(totalPaid)
	entries := make([]models.LedgerEntry, 0, len(ordered))
	for _, p := range ordered {
		running = running.Sub(p.AmountPaid)
		entries = append(entries, models.LedgerEntry{
			PaymentID:           p.ID,
			TransactionID:       displayTransactionID(p.ID),
			Date:                p.PaidAt,
			AmountPaid:          p.AmountPaid,
			PendingBalanceAfter: running,
			Reference:           p.PaypalReference,
		})
	}

	slices.Reverse(entries)
	return entries
}

// displayTransactionID zero-pads the payment id to 4 digits and keeps the
// last 4.
func displayTransactionID(paymentID int64) string {
	s := fmt.Sprintf("%04d", paymentID)
	return s[len(s)-4:]
}
