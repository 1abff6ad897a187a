package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := GetConfig()

	assert.Equal(t, "finance_portal", cfg.Name)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=password dbname=finance_portal sslmode=disable", cfg.DSN())
}

func TestGetConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("database.host", "db.internal")
	viper.Set("database.ssl_mode", "require")

	cfg := GetConfig()

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "require", cfg.SSLMode)
}

func TestSchemaDefinesBalanceColumns(t *testing.T) {
	assert.Contains(t, schema, "initial_balance")
	assert.Contains(t, schema, "CHECK (amount_paid > 0)")
	assert.Contains(t, schema, "WHERE paypal_reference <> ''")
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS accounts")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Migrate(context.Background(), db))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	assert.ErrorContains(t, Migrate(context.Background(), db), "apply schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}
