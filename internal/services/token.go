package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/cccs/finance-portal/internal/models"
)

// Claims is the session carried by every portal token.
type Claims struct {
	AccountID int64  `json:"account_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the session belongs to staff.
func (c *Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

func tokenExpiry() time.Duration {
	hours := viper.GetInt("jwt.expiry_hours")
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func signingKey() ([]byte, error) {
	secret := viper.GetString("jwt.secret_key")
	if secret == "" {
		return nil, errors.New("jwt.secret_key is not configured")
	}
	return []byte(secret), nil
}

// generateJWT issues a signed HS256 session token for the account.
func generateJWT(account *models.Account, now time.Time) (string, *Claims, error) {
	key, err := signingKey()
	if err != nil {
		return "", nil, err
	}

	claims := &Claims{
		AccountID: account.ID,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiry())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseToken verifies a session token and returns its claims.
func ParseToken(tokenString string) (*Claims, error) {
	return parseToken(tokenString, time.Now())
}

func parseToken(tokenString string, now time.Time) (*Claims, error) {
	key, err := signingKey()
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	keyFunc := func(*jwt.Token) (any, error) { return key, nil }
	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.AccountID == 0 || claims.ID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Authorize allows a session to act on an account it owns; admins may act on
// any account.
func Authorize(claims *Claims, accountID int64) error {
	if claims == nil {
		return NewAuthError("Unauthorized")
	}
	if claims.IsAdmin() || claims.AccountID == accountID {
		return nil
	}
	return NewAuthError("Not permitted to access this account")
}
