package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(name string, rows int, err error, calls *[]string) Strategy {
	return Strategy{Name: name, Run: func(context.Context, Query) ([]Result, error) {
		*calls = append(*calls, name)
		if err != nil {
			return nil, err
		}
		out := make([]Result, rows)
		for i := range out {
			out[i] = ChunkHit(ChunkResult{ChunkIndex: i})
		}
		return out, nil
	}}
}

func TestFirstNonEmptyStopsAtFirstRows(t *testing.T) {
	var calls []string
	out, err := FirstNonEmpty(context.Background(), Query{},
		fixed("a", 0, nil, &calls),
		fixed("b", 2, nil, &calls),
		fixed("c", 1, nil, &calls),
	)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Strategy)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestFirstNonEmptyRecoversEarlyErrors(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	out, err := FirstNonEmpty(context.Background(), Query{},
		fixed("a", 0, boom, &calls),
		fixed("b", 1, nil, &calls),
	)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Strategy)
	require.Len(t, out.Recovered, 1)
	assert.Equal(t, "a", out.Recovered[0].Strategy)
	assert.ErrorIs(t, out.Recovered[0].Err, boom)
}

func TestFirstNonEmptyLastStrategyIsFinal(t *testing.T) {
	var calls []string
	out, err := FirstNonEmpty(context.Background(), Query{},
		fixed("a", 0, nil, &calls),
		fixed("b", 0, nil, &calls),
	)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Strategy)
	assert.Empty(t, out.Results)

	boom := errors.New("last failed")
	out, err = FirstNonEmpty(context.Background(), Query{},
		fixed("a", 0, errors.New("first failed"), &calls),
		fixed("b", 0, boom, &calls),
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "b", out.Strategy)
}

func TestFirstNonEmptyStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls []string
	_, err := FirstNonEmpty(ctx, Query{}, fixed("a", 1, nil, &calls))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestFirstNonEmptyWithNoStrategies(t *testing.T) {
	out, err := FirstNonEmpty(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Empty(t, out.Strategy)
}
