package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cccs/finance-portal/internal/audit"
	"github.com/cccs/finance-portal/internal/models"
)

type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
	audit     *audit.Logger
	logger    *zap.Logger
	now       func() time.Time
}

// UpdateAccountRequest is a partial profile update; nil fields are left alone.
// @Description Account update request structure
type UpdateAccountRequest struct {
	FirstName  *string `json:"First_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"Last_name,omitempty" validate:"omitempty,min=1,max=100"`
	GradeLevel *string `json:"Grade_level,omitempty" validate:"omitempty,oneof=1 2 3 4 5 6 7 8 9 10 11 12"`
	Section    *string `json:"Section,omitempty" validate:"omitempty,min=1,max=100"`
	Email      *string `json:"Email,omitempty" validate:"omitempty,email"`
}

func NewAccountService(db *sql.DB, auditLogger *audit.Logger, logger *zap.Logger) *AccountService {
	return &AccountService{
		db:        db,
		validator: NewValidationHelper(),
		audit:     auditLogger,
		logger:    logger.Named("accounts"),
		now:       time.Now,
	}
}

// GetAccount returns the profile. It is not gated so that unvalidated
// students can still see their pending status.
func (s *AccountService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
	if err != nil {
		return nil, notFoundOr(err, "Account not found", "Failed to load account")
	}
	return account, nil
}

func (s *AccountService) UpdateAccount(ctx context.Context, accountID int64, req UpdateAccountRequest) (*models.Account, error) {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	req.FirstName = trim(req.FirstName)
	req.LastName = trim(req.LastName)
	req.GradeLevel = trim(req.GradeLevel)
	req.Section = trim(req.Section)
	if req.Email = trim(req.Email); req.Email != nil {
		lower := strings.ToLower(*req.Email)
		req.Email = &lower
	}

	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	add("first_name", req.FirstName)
	add("last_name", req.LastName)
	add("grade_level", req.GradeLevel)
	add("section", req.Section)
	add("email", req.Email)

	if len(sets) == 0 {
		return nil, NewValidationError("No fields to update")
	}

	args = append(args, s.now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, accountID)

	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), accountColumns)

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewValidationError("Email already registered")
		}
		s.logger.Error("account update failed", zap.Int64("account_id", accountID), zap.Error(err))
		return nil, notFoundOr(err, "Account not found", "Failed to update account")
	}

	s.logger.Info("account updated", zap.Int64("account_id", accountID), zap.Int("fields", len(sets)-1))
	return account, nil
}

// GetBalance returns the denormalized amount still owed.
func (s *AccountService) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := requireValidated(ctx, s.db, accountID, false)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// GetBalanceDetails reads balance and payment total from one snapshot.
// amountPayable is the balance; totalBalance adds back everything paid.
func (s *AccountService) GetBalanceDetails(ctx context.Context, accountID int64) (*models.BalanceDetails, error) {
	var details *models.BalanceDetails

	err := withTx(ctx, s.db, readOnlySnapshot, func(tx *sql.Tx) error {
		account, err := requireValidated(ctx, tx, accountID, false)
		if err != nil {
			return err
		}

		var totalPaid decimal.Decimal
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(amount_paid), 0) FROM payments WHERE account_id = $1`, accountID,
		).Scan(&totalPaid)
		if err != nil {
			return NewStorageError("Failed to load payments", err)
		}

		details = &models.BalanceDetails{
			TotalBalance:  account.Balance.Add(totalPaid),
			TotalPaid:     totalPaid,
			AmountPayable: account.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// ValidateAccount moves an account from pending to validated. Validating an
// already validated account is a no-op.
func (s *AccountService) ValidateAccount(ctx context.Context, actorID, accountID int64) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		`UPDATE accounts SET is_validated = TRUE, updated_at = $1 WHERE id = $2 RETURNING `+accountColumns,
		s.now().UTC(), accountID))
	if err != nil {
		s.audit.LogError(audit.EventAccountValidated, actorID, accountID, err)
		return nil, notFoundOr(err, "Account not found", "Failed to validate account")
	}

	s.audit.LogOperation(audit.EventAccountValidated, actorID, accountID, nil)
	s.logger.Info("account validated", zap.Int64("account_id", accountID), zap.Int64("actor_id", actorID))
	return account, nil
}
