package ctxutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	hotel := uuid.New()
	ctx := WithRequestData(context.Background(), &RequestData{HotelID: hotel})
	ctx = WithTraceData(ctx, &TraceData{TraceID: "t-1", RequestID: "r-1"})

	assert.Equal(t, hotel, GetRequestData(ctx).HotelID)
	assert.Equal(t, "t-1", GetTraceData(ctx).TraceID)
}

func TestMissingValuesAreNil(t *testing.T) {
	assert.Nil(t, GetRequestData(context.Background()))
	assert.Nil(t, GetTraceData(context.Background()))
	assert.Nil(t, GetTraceData(nil))
}
