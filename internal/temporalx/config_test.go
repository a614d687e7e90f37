package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"TEMPORAL_ADDRESS", "TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE", "TEMPORAL_WORKER_CONCURRENCY"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	assert.False(t, cfg.Enabled())
	assert.Equal(t, "concierge", cfg.Namespace)
	assert.Equal(t, "concierge-ingest", cfg.TaskQueue)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 7*24*time.Hour, cfg.NamespaceRetention)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "temporal:7233")
	t.Setenv("TEMPORAL_TASK_QUEUE", "ingest-eu")
	t.Setenv("TEMPORAL_WORKER_CONCURRENCY", "500")
	t.Setenv("TEMPORAL_CLIENT_CA_PATH", "/etc/ca.pem")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled())
	assert.True(t, cfg.tlsEnabled())
	assert.Equal(t, "ingest-eu", cfg.TaskQueue)
	assert.Equal(t, 64, cfg.WorkerConcurrency)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, Backoff(0, time.Second, 1))
	assert.Equal(t, 400*time.Millisecond, Backoff(100*time.Millisecond, time.Second, 3))
	assert.Equal(t, time.Second, Backoff(100*time.Millisecond, time.Second, 10))
}

func TestLoadTLSConfigRequiresPair(t *testing.T) {
	_, err := loadTLSConfig(Config{ClientCAPath: "/etc/ca.pem"})
	assert.Error(t, err)
}

func TestRetryUntilStopsOnSuccess(t *testing.T) {
	calls := 0
	err := RetryUntil(context.Background(), time.Second, time.Millisecond, time.Millisecond, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryUntilGiveUpReturnsCause(t *testing.T) {
	cause := errors.New("bad credentials")
	calls := 0
	err := RetryUntil(context.Background(), time.Minute, time.Millisecond, time.Millisecond, func(int) error {
		calls++
		return GiveUp(cause)
	})
	assert.Same(t, cause, err)
	assert.Equal(t, 1, calls)
}

func TestRetryUntilWithoutWaitTriesOnce(t *testing.T) {
	calls := 0
	err := RetryUntil(context.Background(), 0, time.Millisecond, time.Millisecond, func(int) error {
		calls++
		return errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, calls)
}

func TestRetryUntilHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := RetryUntil(ctx, time.Minute, time.Second, time.Second, func(int) error {
		calls++
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
