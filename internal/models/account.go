package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Balances go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Account roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Account represents a registered student (or staff) finance account.
// Balance is the denormalized amount still owed; InitialBalance is what was
// assessed at registration and never changes afterwards.
type Account struct {
	ID             int64           `json:"id" db:"id" example:"1"`
	FirstName      string          `json:"First_name" db:"first_name" example:"Juan"`
	LastName       string          `json:"Last_name" db:"last_name" example:"Dela Cruz"`
	LRN            string          `json:"LRN" db:"lrn" example:"123456789012"`
	GradeLevel     string          `json:"Grade_level" db:"grade_level" example:"7"`
	Section        string          `json:"Section" db:"section" example:"St. Joseph"`
	Email          string          `json:"Email" db:"email" example:"juan@example.com"`
	Role           string          `json:"role" db:"role" example:"student"`
	IsValidated    bool            `json:"Is_validated" db:"is_validated"`
	InitialBalance decimal.Decimal `json:"initial_balance" db:"initial_balance" swaggertype:"number"`
	Balance        decimal.Decimal `json:"balance" db:"balance" swaggertype:"number"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the account carries the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// BalanceDetails is the summary shown on the account balance page
type BalanceDetails struct {
	TotalBalance  decimal.Decimal `json:"totalBalance" swaggertype:"number"`
	TotalPaid     decimal.Decimal `json:"totalPaid" swaggertype:"number"`
	AmountPayable decimal.Decimal `json:"amountPayable" swaggertype:"number"`
}

// BalanceDrift describes an account whose stored balance disagrees with
// initial_balance minus the sum of its payments.
type BalanceDrift struct {
	AccountID int64           `json:"account_id"`
	Stored    decimal.Decimal `json:"stored_balance" swaggertype:"number"`
	Expected  decimal.Decimal `json:"expected_balance" swaggertype:"number"`
	Drift     decimal.Decimal `json:"drift" swaggertype:"number"`
}
