package services

import (
	"context"
	"database/sql"

	"github.com/cccs/finance-portal/internal/models"
)

const accountColumns = `id, first_name, last_name, lrn, grade_level, section, email, role, is_validated, initial_balance, balance, created_at, updated_at`

const paymentColumns = `payment_id, account_id, amount_paid, paypal_reference, paid_at`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// readOnlySnapshot makes every read inside the transaction see one snapshot.
var readOnlySnapshot = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.LRN, &a.GradeLevel, &a.Section, &a.Email,
		&a.Role, &a.IsValidated, &a.InitialBalance, &a.Balance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	if err := row.Scan(&p.ID, &p.AccountID, &p.AmountPaid, &p.PaypalReference, &p.PaidAt); err != nil {
		return nil, err
	}
	p.PaidAt = p.PaidAt.UTC()
	return &p, nil
}

func queryPayments(ctx context.Context, q queryer, query string, args ...any) ([]models.Payment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// withTx runs fn inside a transaction, committing when fn succeeds. fn's
// error is returned unchanged so service errors keep their kind.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return NewStorageError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("Failed to commit transaction", err)
	}
	return nil
}

// requireValidated loads the account and applies the validation gate. With
// forUpdate the row stays locked until the surrounding transaction ends.
func requireValidated(ctx context.Context, q queryer, accountID int64, forUpdate bool) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	account, err := scanAccount(q.QueryRowContext(ctx, query, accountID))
	if err != nil {
		return nil, notFoundOr(err, "Account not found", "Failed to load account")
	}
	if !account.IsValidated {
		return nil, ErrAccountNotValidated
	}
	return account, nil
}
