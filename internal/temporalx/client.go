package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/concierge-backend/internal/pkg/httpx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const namespaceEnsureTimeout = 10 * time.Second

// ErrGiveUp marks an error RetryUntil must not retry.
var ErrGiveUp = errors.New("temporalx: permanent failure")

// RetryUntil calls fn until it returns nil, returns an error wrapping
// ErrGiveUp, or maxWait elapses. Attempts are 1-based. The last error is
// returned with ErrGiveUp stripped.
func RetryUntil(ctx context.Context, maxWait, base, maxBackoff time.Duration, fn func(attempt int) error) error {
	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		var giveUp permanent
		if errors.As(err, &giveUp) {
			return giveUp.err
		}
		if maxWait <= 0 || time.Now().After(deadline) {
			return err
		}
		if sleepErr := httpx.Sleep(ctx, Backoff(base, maxBackoff, attempt)); sleepErr != nil {
			return err
		}
	}
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return ErrGiveUp }

// GiveUp wraps err so RetryUntil returns it immediately.
func GiveUp(err error) error { return permanent{err: err} }

// Backoff is the wait before retry number attempt (1-based): base doubled per
// attempt, capped at max. A non-positive base means 250ms.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	return httpx.Backoff(attempt-1, base, max)
}

// NewClient dials Temporal, retrying for DialMaxWait so the API can start
// alongside a Temporal container. It returns nil, nil when no address is set.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (temporalsdkclient.Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled() {
		log.Info("TEMPORAL_ADDRESS not set; documents are processed inline")
		return nil, nil
	}
	opts, err := clientOptions(cfg, log, true)
	if err != nil {
		return nil, err
	}

	var c temporalsdkclient.Client
	err = RetryUntil(ctx, cfg.DialMaxWait, cfg.DialBackoff, cfg.DialBackoffMax, func(attempt int) error {
		dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		dialed, err := temporalsdkclient.DialContext(dctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return GiveUp(err)
			}
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)
			return err
		}
		if attempt > 1 {
			log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
		}
		c = dialed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
	}

	if cfg.AutoRegisterNamespace {
		if err := EnsureNamespace(ctx, cfg, log); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// EnsureNamespace registers cfg.Namespace when the cluster does not know it.
// Managed clusters provision namespaces themselves; this is for local and
// self-hosted setups.
func EnsureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	if cfg.Namespace == "" || !cfg.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, namespaceEnsureTimeout)
	defer cancel()

	// No namespace on these options: the namespace client must be able to
	// talk to the cluster before ours exists.
	opts, err := clientOptions(cfg, log, false)
	if err != nil {
		return err
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace client: %w", err)
	}
	defer nsClient.Close()

	err = RetryUntil(ctx, namespaceEnsureTimeout, 250*time.Millisecond, 5*time.Second, func(attempt int) error {
		err := describeOrRegister(ctx, nsClient, cfg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryableRPC(err) {
			return GiveUp(err)
		}
		log.Warn("Temporal namespace check failed; retrying", "namespace", cfg.Namespace, "attempt", attempt, "error", err)
		return err
	})
	if err != nil {
		return fmt.Errorf("temporal namespace %q: %w", cfg.Namespace, err)
	}
	return nil
}

func describeOrRegister(ctx context.Context, nsClient temporalsdkclient.NamespaceClient, cfg Config) error {
	_, err := nsClient.Describe(ctx, cfg.Namespace)
	var notFound *serviceerror.NamespaceNotFound
	if !errors.As(err, &notFound) {
		return err
	}
	err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        cfg.Namespace,
		Description:                      "concierge document ingestion",
		WorkflowExecutionRetentionPeriod: durationpb.New(cfg.NamespaceRetention),
	})
	var exists *serviceerror.NamespaceAlreadyExists
	if errors.As(err, &exists) {
		return nil
	}
	return err
}

func clientOptions(cfg Config, log *logger.Logger, withNamespace bool) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{HostPort: cfg.Address, Logger: log}
	if withNamespace {
		opts.Namespace = cfg.Namespace
	}
	if cfg.tlsEnabled() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

// loadTLSConfig builds mTLS settings. The CA is optional; without it the
// system pool verifies the server.
func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH must both be set")
	}
	pair, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: %w", err)
	}
	out := &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath == "" {
		return out, nil
	}
	caPEM, err := os.ReadFile(cfg.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: %w", err)
	}
	out.RootCAs = x509.NewCertPool()
	if !out.RootCAs.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("temporal tls: no certificates in %s", cfg.ClientCAPath)
	}
	return out, nil
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}
