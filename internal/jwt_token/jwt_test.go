package jwttoken

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixellocker/pkg/domain"
	dErrors "pixellocker/pkg/domain-errors"
	"pixellocker/pkg/requestcontext"
	"pixellocker/pkg/testutil"
)

var expiresIn = time.Second * 1

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
	expiresIn,
)

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(context.Background(), testutil.Alice)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, testutil.Alice.String(), claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateAccessToken_RejectsNullPrincipal(t *testing.T) {
	_, err := jwtService.GenerateAccessToken(context.Background(), domain.ZeroAddress)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorContains(t, err, "invalid token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.Now().Add(-time.Hour))
	token, err := jwtService.GenerateAccessToken(ctx, testutil.Alice)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorContains(t, err, "token expired")
}

func Test_ValidateToken_RejectsForeignIssuerAndAudience(t *testing.T) {
	for name, svc := range map[string]*JWTService{
		"issuer":   NewJWTService("test-signing-key", "someone-else", "test-audience", time.Minute),
		"audience": NewJWTService("test-signing-key", "test-issuer", "other-audience", time.Minute),
		"key":      NewJWTService("other-key", "test-issuer", "test-audience", time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			token, err := svc.GenerateAccessToken(context.Background(), testutil.Bob)
			require.NoError(t, err)
			_, err = jwtService.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}

func Test_ValidateToken_RejectsAlgorithmConfusion(t *testing.T) {
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testutil.Alice.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			Issuer:    "test-issuer",
			Audience:  []string{"test-audience"},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(signed)
	require.Error(t, err)
}

func Test_Adapter(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(context.Background(), testutil.Carol)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, testutil.Carol.String(), claims.Subject)
	assert.NotEmpty(t, claims.JTI)
}
