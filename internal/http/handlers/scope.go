package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/concierge-backend/internal/pkg/errors"
	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
)

// tokenHotel is the hotel claim of the authenticated caller, or uuid.Nil.
func tokenHotel(c *gin.Context) uuid.UUID {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		return uuid.Nil
	}
	return rd.HotelID
}

// checkHotel rejects an explicit hotel that differs from the token's claim.
// Malformed ids are left to the caller's own validation.
func checkHotel(c *gin.Context, raw string) error {
	claim := tokenHotel(c)
	if claim == uuid.Nil {
		return nil
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	if id != claim {
		return fmt.Errorf("%w: token is not scoped to hotel %s", pkgerrors.ErrForbidden, id)
	}
	return nil
}

// resolveHotel returns the hotel a document request acts on: the explicit
// hotel_id when given, otherwise the token's claim.
func resolveHotel(c *gin.Context, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if claim := tokenHotel(c); claim != uuid.Nil {
			return claim, nil
		}
		return uuid.Nil, fmt.Errorf("%w: hotel_id is required", pkgerrors.ErrInvalidArgument)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: hotel_id must be a UUID", pkgerrors.ErrInvalidArgument)
	}
	if err := checkHotel(c, raw); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func pathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", pkgerrors.ErrInvalidArgument, name)
	}
	return id, nil
}
