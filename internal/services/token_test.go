package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cccs/finance-portal/internal/models"
)

func TestGenerateAndParseToken(t *testing.T) {
	setupTestConfig(t)

	account := &models.Account{ID: 7, Role: models.RoleStudent}
	now := time.Now()

	token, claims, err := generateJWT(account, now)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "7", claims.Subject)

	parsed, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), parsed.AccountID)
	assert.Equal(t, models.RoleStudent, parsed.Role)
	assert.Equal(t, claims.ID, parsed.ID)
	assert.False(t, parsed.IsAdmin())
}

func TestParseTokenRejects(t *testing.T) {
	setupTestConfig(t)
	account := &models.Account{ID: 7, Role: models.RoleStudent}

	t.Run("expired", func(t *testing.T) {
		token, _, err := generateJWT(account, time.Now().Add(-2*time.Hour))
		require.NoError(t, err)

		_, err = ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := generateJWT(account, time.Now())
		require.NoError(t, err)

		viper.Set("jwt.secret_key", "another-secret")
		defer viper.Set("jwt.secret_key", "test-secret")

		_, err = ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("unsigned token", func(t *testing.T) {
		claims := &Claims{
			AccountID: 7,
			Role:      models.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "jti",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("missing account id", func(t *testing.T) {
		token, _, err := generateJWT(&models.Account{Role: models.RoleStudent}, time.Now())
		require.NoError(t, err)

		_, err = ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestGenerateJWTWithoutSecret(t *testing.T) {
	viper.Set("jwt.secret_key", "")
	t.Cleanup(viper.Reset)

	_, _, err := generateJWT(&models.Account{ID: 1}, time.Now())
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	student := &Claims{AccountID: 7, Role: models.RoleStudent}
	admin := &Claims{AccountID: 1, Role: models.RoleAdmin}

	assert.NoError(t, Authorize(student, 7))
	assert.NoError(t, Authorize(admin, 7))
	assert.True(t, IsKind(Authorize(student, 8), KindAuth))
	assert.True(t, IsKind(Authorize(nil, 7), KindAuth))
}
