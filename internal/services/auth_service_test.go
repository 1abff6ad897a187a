package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cccs/finance-portal/internal/models"
)

var (
	emailLookup = regexp.QuoteMeta("SELECT id FROM accounts WHERE email = $1")
	lrnLookup   = regexp.QuoteMeta("SELECT id FROM accounts WHERE lrn = $1")
	loginLookup = regexp.QuoteMeta("FROM accounts WHERE lrn = $1")
)

func newTestAuthService(t *testing.T, redisClient *redis.Client) (*AuthService, sqlmock.Sqlmock) {
	t.Helper()
	setupTestConfig(t)
	db, mock := newMockDB(t)
	svc := NewAuthService(db, redisClient, zap.NewNop(), AuthSettings{DefaultBalance: decimal.RequireFromString("15000")})
	svc.now = fixedNow
	return svc, mock
}

func loginRows(hashedPassword string, validated bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "first_name", "last_name", "lrn", "grade_level", "section", "email", "password",
		"role", "is_validated", "initial_balance", "balance", "created_at", "updated_at",
	}).AddRow(
		int64(7), "Juan", "Dela Cruz", "123456789012", "7", "St. Joseph", "juan@example.com", hashedPassword,
		models.RoleStudent, validated, "15000", "15000", testTime, testTime,
	)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("successful registration", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)
		req := validRegisterRequest()
		req.Email = "  Juan@Example.com "

		mock.ExpectQuery(emailLookup).WithArgs("juan@example.com").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(lrnLookup).WithArgs("123456789012").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO accounts").
			WithArgs("Juan", "Dela Cruz", "123456789012", "7", "St. Joseph", "juan@example.com",
				sqlmock.AnyArg(), models.RoleStudent, false, "15000", "15000", testTime).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

		account, err := svc.Register(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(7), account.ID)
		assert.Equal(t, "juan@example.com", account.Email)
		assert.False(t, account.IsValidated)
		assert.True(t, account.Balance.Equal(account.InitialBalance))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)

		mock.ExpectQuery(emailLookup).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

		_, err := svc.Register(ctx, validRegisterRequest())
		require.Error(t, err)
		assert.True(t, IsKind(err, KindValidation))
		assert.Equal(t, "Email already registered", AsError(err).Message)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate LRN", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)

		mock.ExpectQuery(emailLookup).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(lrnLookup).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

		_, err := svc.Register(ctx, validRegisterRequest())
		assert.Equal(t, "LRN already registered", AsError(err).Message)
	})

	t.Run("concurrent duplicate hits unique index", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)

		mock.ExpectQuery(emailLookup).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(lrnLookup).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("INSERT INTO accounts").WillReturnError(&pq.Error{Code: "23505"})

		_, err := svc.Register(ctx, validRegisterRequest())
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("invalid fields never reach the database", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)
		req := validRegisterRequest()
		req.GradeLevel = "13"

		_, err := svc.Register(ctx, req)
		require.Error(t, err)
		assert.Contains(t, AsError(err).Details, "GradeLevel")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)
		hashed, err := hashPassword("password123")
		require.NoError(t, err)

		mock.ExpectQuery(loginLookup).WithArgs("123456789012").WillReturnRows(loginRows(hashed, false))

		result, err := svc.Login(ctx, LoginRequest{LRN: "123456789012", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, int64(7), result.Account.ID)
		assert.False(t, result.Account.IsValidated)
		assert.True(t, testTime.Add(time.Hour).Equal(result.ExpiresAt))

		claims, err := parseToken(result.Token, testTime)
		require.NoError(t, err)
		assert.Equal(t, int64(7), claims.AccountID)
	})

	t.Run("legacy bcrypt hash", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)
		hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
		require.NoError(t, err)

		mock.ExpectQuery(loginLookup).WillReturnRows(loginRows(string(hashed), true))

		_, err = svc.Login(ctx, LoginRequest{LRN: "123456789012", Password: "password123"})
		assert.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)
		hashed, _ := hashPassword("password123")

		mock.ExpectQuery(loginLookup).WillReturnRows(loginRows(hashed, true))

		_, err := svc.Login(ctx, LoginRequest{LRN: "123456789012", Password: "wrong"})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindAuth))
		assert.Equal(t, "Invalid LRN or password", AsError(err).Message)
	})

	t.Run("unknown LRN", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)

		mock.ExpectQuery(loginLookup).WillReturnError(sql.ErrNoRows)

		_, err := svc.Login(ctx, LoginRequest{LRN: "999", Password: "password123"})
		assert.Equal(t, "Invalid LRN or password", AsError(err).Message)
	})

	t.Run("database failure", func(t *testing.T) {
		svc, mock := newTestAuthService(t, nil)

		mock.ExpectQuery(loginLookup).WillReturnError(errors.New("connection refused"))

		_, err := svc.Login(ctx, LoginRequest{LRN: "123", Password: "password123"})
		assert.True(t, IsKind(err, KindStorage))
	})
}

func TestAuthService_LoginRateLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("locked out after max attempts", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		svc, mock := newTestAuthService(t, redisClient)

		redisMock.ExpectGet("login:attempts:123456789012").SetVal("5")

		_, err := svc.Login(ctx, LoginRequest{LRN: "123456789012", Password: "password123"})
		require.Error(t, err)
		assert.Equal(t, CodeTooManyAttempts, AsError(err).Code)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("failure starts the lockout window", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		svc, mock := newTestAuthService(t, redisClient)
		hashed, _ := hashPassword("password123")

		redisMock.ExpectGet("login:attempts:123456789012").RedisNil()
		mock.ExpectQuery(loginLookup).WillReturnRows(loginRows(hashed, true))
		redisMock.ExpectIncr("login:attempts:123456789012").SetVal(1)
		redisMock.ExpectExpire("login:attempts:123456789012", 15*time.Minute).SetVal(true)

		_, err := svc.Login(ctx, LoginRequest{LRN: "123456789012", Password: "wrong"})
		assert.True(t, IsKind(err, KindAuth))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("success clears failures", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		svc, mock := newTestAuthService(t, redisClient)
		hashed, _ := hashPassword("password123")

		redisMock.ExpectGet("login:attempts:123456789012").SetVal("2")
		mock.ExpectQuery(loginLookup).WillReturnRows(loginRows(hashed, true))
		redisMock.ExpectDel("login:attempts:123456789012").SetVal(1)

		_, err := svc.Login(ctx, LoginRequest{LRN: "123456789012", Password: "password123"})
		assert.NoError(t, err)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("blacklists token until expiry", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		svc, _ := newTestAuthService(t, redisClient)

		_, claims, err := generateJWT(&models.Account{ID: 7, Role: models.RoleStudent}, testTime)
		require.NoError(t, err)

		redisMock.ExpectSet(BlacklistKey(claims.ID), "1", time.Hour).SetVal("OK")

		assert.NoError(t, svc.Logout(ctx, claims))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("redis failure surfaces", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		svc, _ := newTestAuthService(t, redisClient)
		_, claims, _ := generateJWT(&models.Account{ID: 7}, testTime)

		redisMock.ExpectSet(BlacklistKey(claims.ID), "1", time.Hour).SetErr(errors.New("redis down"))

		assert.True(t, IsKind(svc.Logout(ctx, claims), KindStorage))
	})

	t.Run("without redis", func(t *testing.T) {
		svc, _ := newTestAuthService(t, nil)
		assert.NoError(t, svc.Logout(ctx, &Claims{AccountID: 7}))
	})
}

func TestPasswordHashing(t *testing.T) {
	setupTestConfig(t)

	hashed, err := hashPassword("secret-pass")
	require.NoError(t, err)

	assert.True(t, verifyPassword("secret-pass", hashed))
	assert.False(t, verifyPassword("other-pass", hashed))
	assert.False(t, verifyPassword("secret-pass", "not-a-hash"))
	assert.False(t, verifyPassword("secret-pass", "!!!$!!!"))
}
