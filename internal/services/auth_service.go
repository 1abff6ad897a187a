package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/cccs/finance-portal/internal/metrics"
	"github.com/cccs/finance-portal/internal/models"
)

// AuthSettings carries the portal policy knobs used during registration and login.
type AuthSettings struct {
	DefaultBalance   decimal.Decimal
	LoginMaxAttempts int
	LoginLockout     time.Duration
}

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
	logger    *zap.Logger
	settings  AuthSettings
	metrics   *metrics.Collector
	now       func() time.Time
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	FirstName  string `json:"First_name" validate:"required,max=100" example:"Juan"`
	LastName   string `json:"Last_name" validate:"required,max=100" example:"Dela Cruz"`
	LRN        string `json:"LRN" validate:"required,number,max=20" example:"123456789012"`
	GradeLevel string `json:"Grade_level" validate:"required,oneof=1 2 3 4 5 6 7 8 9 10 11 12" example:"7"`
	Section    string `json:"Section" validate:"required,max=100" example:"St. Joseph"`
	Email      string `json:"Email" validate:"required,email" example:"juan@example.com"`
	Password   string `json:"Password" validate:"required,min=6" example:"password123"`
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	LRN      string `json:"LRN" validate:"required" example:"123456789012"`
	Password string `json:"Password" validate:"required" example:"password123"`
}

// LoginResult is returned on successful authentication
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, logger *zap.Logger, settings AuthSettings) *AuthService {
	if settings.LoginMaxAttempts <= 0 {
		settings.LoginMaxAttempts = 5
	}
	if settings.LoginLockout <= 0 {
		settings.LoginLockout = 15 * time.Minute
	}
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
		logger:    logger.Named("auth"),
		settings:  settings,
		now:       time.Now,
	}
}

// WithMetrics records login outcomes on m.
func (s *AuthService) WithMetrics(m *metrics.Collector) *AuthService {
	s.metrics = m
	return s
}

// Register creates a new, unvalidated student account.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.Account, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.LRN = strings.TrimSpace(req.LRN)
	req.GradeLevel = strings.TrimSpace(req.GradeLevel)
	req.Section = strings.TrimSpace(req.Section)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.validator.Validate(&req); err != nil {
		s.logger.Info("registration validation failed", zap.Error(err))
		return nil, err
	}

	taken, err := s.exists(ctx, "SELECT id FROM accounts WHERE email = $1", req.Email)
	if err != nil {
		return nil, NewStorageError("Failed to create account", err)
	}
	if taken {
		return nil, NewValidationError("Email already registered")
	}

	taken, err = s.exists(ctx, "SELECT id FROM accounts WHERE lrn = $1", req.LRN)
	if err != nil {
		return nil, NewStorageError("Failed to create account", err)
	}
	if taken {
		return nil, NewValidationError("LRN already registered")
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", zap.String("lrn", req.LRN), zap.Error(err))
		return nil, NewStorageError("An Internal Error Occurred", err)
	}

	now := s.now().UTC()
	account := &models.Account{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		LRN:            req.LRN,
		GradeLevel:     req.GradeLevel,
		Section:        req.Section,
		Email:          req.Email,
		Role:           models.RoleStudent,
		IsValidated:    false,
		InitialBalance: s.settings.DefaultBalance,
		Balance:        s.settings.DefaultBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (first_name, last_name, lrn, grade_level, section, email, password, role, is_validated, initial_balance, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id`,
		account.FirstName, account.LastName, account.LRN, account.GradeLevel, account.Section, account.Email,
		hashedPassword, account.Role, account.IsValidated, account.InitialBalance, account.Balance, now,
	).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewValidationError("Email or LRN already registered")
		}
		s.logger.Error("account creation failed", zap.String("lrn", req.LRN), zap.Error(err))
		return nil, NewStorageError("Failed to create account", err)
	}

	s.logger.Info("account created", zap.Int64("account_id", account.ID), zap.String("lrn", account.LRN))
	return account, nil
}

// Login authenticates by LRN and password and issues a session token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	req.LRN = strings.TrimSpace(req.LRN)
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}

	if err := s.checkLoginLimit(ctx, req.LRN); err != nil {
		return nil, err
	}

	account, hashedPassword, err := s.findByLRN(ctx, req.LRN)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("login failed: unknown LRN", zap.String("lrn", req.LRN))
			s.recordLoginFailure(ctx, req.LRN)
			return nil, NewAuthError("Invalid LRN or password")
		}
		s.logger.Error("login lookup failed", zap.String("lrn", req.LRN), zap.Error(err))
		return nil, NewStorageError("Failed to log in", err)
	}

	if !verifyPassword(req.Password, hashedPassword) {
		s.logger.Info("login failed: bad password", zap.Int64("account_id", account.ID))
		s.recordLoginFailure(ctx, req.LRN)
		return nil, NewAuthError("Invalid LRN or password")
	}
	s.clearLoginFailures(ctx, req.LRN)
	s.metrics.RecordLogin(true)

	token, claims, err := generateJWT(account, s.now())
	if err != nil {
		s.logger.Error("token generation failed", zap.Int64("account_id", account.ID), zap.Error(err))
		return nil, NewStorageError("Failed to generate token", err)
	}

	s.logger.Info("login successful", zap.Int64("account_id", account.ID), zap.Bool("validated", account.IsValidated))
	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Account:   account,
	}, nil
}

// Logout revokes the session until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || s.redis == nil {
		return nil
	}

	ttl := tokenExpiry()
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, BlacklistKey(claims.ID), "1", ttl).Err(); err != nil {
		s.logger.Error("failed to blacklist token", zap.Int64("account_id", claims.AccountID), zap.Error(err))
		return NewStorageError("Failed to log out", err)
	}
	s.logger.Info("logout", zap.Int64("account_id", claims.AccountID))
	return nil
}

// BlacklistKey is the Redis key marking a revoked token id.
func BlacklistKey(tokenID string) string {
	return fmt.Sprintf("blacklist:%s", tokenID)
}

func loginAttemptsKey(lrn string) string {
	return fmt.Sprintf("login:attempts:%s", lrn)
}

func (s *AuthService) checkLoginLimit(ctx context.Context, lrn string) error {
	if s.redis == nil {
		return nil
	}

	count, err := s.redis.Get(ctx, loginAttemptsKey(lrn)).Int()
	if err != nil && err != redis.Nil {
		s.logger.Warn("login rate limit lookup failed", zap.Error(err))
		return nil
	}

	if count >= s.settings.LoginMaxAttempts {
		return &Error{
			Kind:    KindAuth,
			Message: "Too many failed login attempts, try again later",
			Code:    CodeTooManyAttempts,
		}
	}
	return nil
}

func (s *AuthService) recordLoginFailure(ctx context.Context, lrn string) {
	s.metrics.RecordLogin(false)
	if s.redis == nil {
		return
	}

	key := loginAttemptsKey(lrn)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Warn("failed to record login failure", zap.Error(err))
		return
	}
	if count == 1 {
		s.redis.Expire(ctx, key, s.settings.LoginLockout)
	}
}

func (s *AuthService) clearLoginFailures(ctx context.Context, lrn string) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, loginAttemptsKey(lrn))
}

func (s *AuthService) exists(ctx context.Context, query string, arg any) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) findByLRN(ctx context.Context, lrn string) (*models.Account, string, error) {
	var account models.Account
	var hashedPassword string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, lrn, grade_level, section, email, password, role, is_validated, initial_balance, balance, created_at, updated_at
		FROM accounts
		WHERE lrn = $1`, lrn).Scan(
		&account.ID, &account.FirstName, &account.LastName, &account.LRN, &account.GradeLevel,
		&account.Section, &account.Email, &hashedPassword, &account.Role, &account.IsValidated,
		&account.InitialBalance, &account.Balance, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, "", err
	}
	return &account, hashedPassword, nil
}

type argon2Params struct {
	time       uint32
	memory     uint32
	threads    uint8
	keyLength  uint32
	saltLength int
}

func loadArgon2Params() argon2Params {
	p := argon2Params{
		time:       uint32(viper.GetInt("argon2.time")),
		memory:     uint32(viper.GetInt("argon2.memory")),
		threads:    uint8(viper.GetInt("argon2.threads")),
		keyLength:  uint32(viper.GetInt("argon2.key_length")),
		saltLength: viper.GetInt("argon2.salt_length"),
	}
	if p.time == 0 {
		p.time = 1
	}
	if p.memory == 0 {
		p.memory = 64 * 1024
	}
	if p.threads == 0 {
		p.threads = 4
	}
	if p.keyLength == 0 {
		p.keyLength = 32
	}
	if p.saltLength <= 0 {
		p.saltLength = 16
	}
	return p
}

func hashPassword(password string) (string, error) {
	p := loadArgon2Params()
	salt := make([]byte, p.saltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

// verifyPassword checks argon2id hashes ("salt$hash") and bcrypt hashes
// carried over from the previous portal.
func verifyPassword(password, hashedPassword string) bool {
	if strings.HasPrefix(hashedPassword, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
	}

	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	p := loadArgon2Params()
	computedHash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
