package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/concierge-backend/internal/pkg/errors"
	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// AuthService verifies bearer tokens issued by the dashboard and attaches the
// caller to the request context. It never issues tokens on the request path.
type AuthService interface {
	Enabled() bool
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type JWTClaims struct {
	HotelID string `json:"hotel_id,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	leeway       time.Duration
}

func NewAuthService(log *logger.Logger, jwtSecretKey string) AuthService {
	if log == nil {
		log = logger.Nop()
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: []byte(strings.TrimSpace(jwtSecretKey)),
		leeway:       30 * time.Second,
	}
}

func (as *authService) Enabled() bool { return len(as.jwtSecretKey) > 0 }

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, fmt.Errorf("%w: missing token", pkgerrors.ErrUnauthorized)
	}
	if !as.Enabled() {
		return ctx, fmt.Errorf("%w: token verification is not configured", pkgerrors.ErrUnauthorized)
	}

	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(as.leeway))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ctx, fmt.Errorf("%w: token expired", pkgerrors.ErrUnauthorized)
		}
		as.log.Debug("Token rejected", "error", err)
		return ctx, fmt.Errorf("%w: invalid token", pkgerrors.ErrUnauthorized)
	}
	if !parsed.Valid {
		return ctx, fmt.Errorf("%w: invalid token", pkgerrors.ErrUnauthorized)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return ctx, fmt.Errorf("%w: invalid subject", pkgerrors.ErrUnauthorized)
	}
	var hotelID uuid.UUID
	if raw := strings.TrimSpace(claims.HotelID); raw != "" {
		hotelID, err = uuid.Parse(raw)
		if err != nil {
			return ctx, fmt.Errorf("%w: invalid hotel_id claim", pkgerrors.ErrUnauthorized)
		}
	}

	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: userID, HotelID: hotelID}), nil
}

// IssueToken signs an HS256 token for userID scoped to hotelID. Used by the
// admin CLI and tests; production tokens come from the dashboard.
func IssueToken(secret string, userID, hotelID uuid.UUID, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("jwt secret is empty")
	}
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if hotelID != uuid.Nil {
		claims.HotelID = hotelID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}
