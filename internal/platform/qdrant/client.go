package qdrant

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
	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
)

const (
	maxErrorBodyBytes = 1024
	maxResponseBytes  = 64 * maxErrorBodyBytes
	retryBase         = 200 * time.Millisecond
	retryMaxWait      = 5 * time.Second
)

// envelope is the wrapper qdrant puts around every REST answer.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

// call sends one JSON request and decodes envelope.result into out. Failures
// classified retryable are retried up to s.retries extra times.
func (s *vectorStore) call(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = raw
	}

	ctx = ctxutil.Default(ctx)
	for attempt := 0; ; attempt++ {
		err := s.roundTrip(ctx, op, method, path, body, out)
		if err == nil || attempt >= s.retries || !retryable(err) {
			return err
		}
		wait := httpx.JitterSleep(httpx.Backoff(attempt, retryBase, retryMaxWait))
		s.log.Debug("qdrant call failed; retrying", "op", op, "attempt", attempt+1, "wait", wait, "error", err)
		if sleepErr := httpx.Sleep(ctx, wait); sleepErr != nil {
			return err
		}
	}
}

func (s *vectorStore) roundTrip(ctx context.Context, op, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if err := statusError(op, resp.StatusCode, raw); err != nil {
		return err
	}
	return decodeEnvelope(op, resp.StatusCode, raw, out)
}

// ping checks /readyz, which answers in plain text rather than an envelope.
func (s *vectorStore) ping(ctx context.Context, op string) error {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	s.authorize(req)
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *vectorStore) authorize(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func statusError(op string, status int, raw []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	code := OperationErrorQueryFailed
	if status == http.StatusNotFound {
		code = OperationErrorNotFound
	}
	return &OperationError{
		Code:       code,
		Operation:  op,
		StatusCode: status,
		Message:    fmt.Sprintf("qdrant http status=%d body=%q", status, truncateBody(raw)),
	}
}

func decodeEnvelope(op string, status int, raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if msg := envelopeStatusError(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: status, Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

// envelopeStatusError returns "" for "ok" (or a missing status) and the
// server's message otherwise. Status is either a string or {"error": "..."}.
func envelopeStatusError(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var word string
	if json.Unmarshal(raw, &word) == nil {
		if strings.EqualFold(word, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", word)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if msg := strings.TrimSpace(obj.Error); msg != "" {
			return msg
		}
	}
	return "qdrant status=" + trimmed
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var oe *OperationError
	return errors.As(err, &oe) && oe.Retryable()
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
