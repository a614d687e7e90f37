package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/concierge-backend/internal/pkg/httpx"
)

// HTTPError is a non-2xx response from a feature-extraction server.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "feature extraction http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("feature extraction http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("feature extraction http error: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

type TEIConfig struct {
	BaseURL string
	// Path defaults to /embed_all, which returns per-token features.
	Path    string
	APIKey  string
	Timeout time.Duration
	// MaxRetries applies to timeouts, 429 and 5xx. Negative disables retries.
	MaxRetries int
	RetryBase  time.Duration
}

const (
	defaultTEIMaxRetries = 2
	defaultTEIRetryBase  = 250 * time.Millisecond
	maxTEIRetryWait      = 10 * time.Second
)

// TEIModel talks to a text-embeddings-inference compatible server.
type TEIModel struct {
	baseURL    string
	path       string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration
	httpClient *http.Client
}

func NewTEIModel(cfg TEIConfig, httpClient *http.Client) (*TEIModel, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tei: base_url required")
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/embed_all"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries < 0:
		maxRetries = 0
	case maxRetries == 0:
		maxRetries = defaultTEIMaxRetries
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = defaultTEIRetryBase
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}}
	}
	return &TEIModel{
		baseURL:    baseURL,
		path:       path,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    timeout,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		httpClient: httpClient,
	}, nil
}

// TEILoader connects lazily; the probe in Generator is the readiness check.
func TEILoader(cfg TEIConfig, httpClient *http.Client) Loader {
	return func(context.Context) (Model, error) {
		return NewTEIModel(cfg, httpClient)
	}
}

type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

func (m *TEIModel) FeatureExtract(ctx context.Context, texts []string) ([][][]float32, error) {
	if len(texts) == 0 {
		return [][][]float32{}, nil
	}
	var raw json.RawMessage
	if err := m.doJSON(ctx, teiRequest{Inputs: texts, Truncate: true}, &raw); err != nil {
		return nil, err
	}
	return decodeFeatures(raw, len(texts))
}

// decodeFeatures accepts token-level output ([batch][tokens][dims]) and
// pooled output ([batch][dims]); pooled rows become a single token.
func decodeFeatures(raw json.RawMessage, n int) ([][][]float32, error) {
	var tokens [][][]float32
	if err := json.Unmarshal(raw, &tokens); err == nil {
		if len(tokens) != n {
			return nil, fmt.Errorf("tei: got %d results for %d inputs", len(tokens), n)
		}
		return tokens, nil
	}
	var pooled [][]float32
	if err := json.Unmarshal(raw, &pooled); err != nil {
		return nil, fmt.Errorf("tei: decode features: %w", err)
	}
	if len(pooled) != n {
		return nil, fmt.Errorf("tei: got %d results for %d inputs", len(pooled), n)
	}
	out := make([][][]float32, n)
	for i, row := range pooled {
		out[i] = [][]float32{row}
	}
	return out, nil
}

func (m *TEIModel) doJSON(ctx context.Context, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		resp, err := m.post(ctx, payload, out)
		if err == nil || attempt >= m.maxRetries || ctx.Err() != nil || !httpx.IsRetryableError(err) {
			return err
		}
		wait := httpx.JitterSleep(httpx.Backoff(attempt, m.retryBase, maxTEIRetryWait))
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			wait = httpx.RetryAfterDuration(resp, wait, maxTEIRetryWait)
		}
		if err := httpx.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// post performs one attempt. The response is returned only for non-2xx
// statuses so the caller can read Retry-After; its body is already closed.
func (m *TEIModel) post(ctx context.Context, payload []byte, out any) (*http.Response, error) {
	ctx2, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, m.baseURL+m.path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil, json.NewDecoder(resp.Body).Decode(out)
}
