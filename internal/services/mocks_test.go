package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cccs/finance-portal/internal/models"
)

var testTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testTime }

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishPaymentRecorded(ctx context.Context, event models.PaymentEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var accountCols = []string{
	"id", "first_name", "last_name", "lrn", "grade_level", "section", "email",
	"role", "is_validated", "initial_balance", "balance", "created_at", "updated_at",
}

var paymentCols = []string{"payment_id", "account_id", "amount_paid", "paypal_reference", "paid_at"}

func accountRows(id int64, validated bool, initialBalance, balance string) *sqlmock.Rows {
	return sqlmock.NewRows(accountCols).AddRow(
		id, "Juan", "Dela Cruz", "123456789012", "7", "St. Joseph", "juan@example.com",
		models.RoleStudent, validated, initialBalance, balance, testTime, testTime,
	)
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func setupTestConfig(t *testing.T) {
	t.Helper()
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 1)
	viper.Set("argon2.salt_length", 16)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 1024)
	viper.Set("argon2.threads", 1)
	viper.Set("argon2.key_length", 32)
	t.Cleanup(viper.Reset)
}
