package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/yungbote/concierge-backend/internal/pkg/errors"
	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func TestSetContextFromToken(t *testing.T) {
	svc := NewAuthService(logger.Nop(), testSecret)
	user, hotel := uuid.New(), uuid.New()

	tok, err := IssueToken(testSecret, user, hotel, time.Hour)
	require.NoError(t, err)

	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	require.NoError(t, err)
	rd := ctxutil.GetRequestData(ctx)
	require.NotNil(t, rd)
	assert.Equal(t, user, rd.UserID)
	assert.Equal(t, hotel, rd.HotelID)
}

func TestSetContextFromTokenWithoutHotelClaim(t *testing.T) {
	svc := NewAuthService(logger.Nop(), testSecret)
	tok, err := IssueToken(testSecret, uuid.New(), uuid.Nil, time.Hour)
	require.NoError(t, err)

	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, ctxutil.GetRequestData(ctx).HotelID)
}

func TestSetContextFromTokenRejects(t *testing.T) {
	svc := NewAuthService(logger.Nop(), testSecret)
	user := uuid.New()

	wrongKey, _ := IssueToken("other-secret", user, uuid.Nil, time.Hour)
	expired, _ := IssueToken(testSecret, user, uuid.Nil, -time.Hour)
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "guest"},
	}).SignedString([]byte(testSecret))
	badHotel, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		HotelID:          "lobby",
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.String()},
	}).SignedString([]byte(testSecret))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.String()},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not.a.jwt",
		"wrong key":   wrongKey,
		"expired":     expired,
		"bad subject": badSubject,
		"bad hotel":   badHotel,
		"alg none":    none,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			ctx, err := svc.SetContextFromToken(context.Background(), tok)
			require.Error(t, err)
			assert.ErrorIs(t, err, pkgerrors.ErrUnauthorized)
			assert.Nil(t, ctxutil.GetRequestData(ctx))
		})
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	svc := NewAuthService(logger.Nop(), " ")
	assert.False(t, svc.Enabled())

	tok, err := IssueToken(testSecret, uuid.New(), uuid.Nil, time.Hour)
	require.NoError(t, err)
	_, err = svc.SetContextFromToken(context.Background(), tok)
	assert.ErrorIs(t, err, pkgerrors.ErrUnauthorized)
}
