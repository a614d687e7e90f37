package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body any) *http.Response {
	b, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func TestTEIModelMeanPoolsTokenFeatures(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/embed_all", req.URL.Path)
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		var in teiRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			return nil, err
		}
		out := make([][][]float32, len(in.Inputs))
		for i := range in.Inputs {
			out[i] = [][]float32{{1, 0}, {0, 1}}
		}
		return jsonResponse(http.StatusOK, out), nil
	})}

	g := NewGenerator("tei-test", TEILoader(TEIConfig{BaseURL: "http://tei/", APIKey: "secret"}, client),
		WithDimensions(2))
	vec, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 2)
	assert.InDelta(t, 0.7071, vec[0], 1e-3)
	assert.InDelta(t, 0.7071, vec[1], 1e-3)
}

func TestTEIModelAcceptsPooledOutput(t *testing.T) {
	feats, err := decodeFeatures(json.RawMessage(`[[0.1,0.2,0.3],[0.4,0.5,0.6]]`), 2)
	require.NoError(t, err)
	require.Len(t, feats, 2)
	assert.Equal(t, [][]float32{{0.4, 0.5, 0.6}}, feats[1])

	_, err = decodeFeatures(json.RawMessage(`[[0.1,0.2]]`), 2)
	assert.Error(t, err)
}

func TestTEIModelHTTPErrorIsModelUnavailable(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, map[string]string{"error": "loading"}), nil
	})}

	g := NewGenerator("tei-down", TEILoader(TEIConfig{BaseURL: "http://tei", MaxRetries: -1}, client), WithDimensions(2))
	_, err := g.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestTEIModelRetriesTransientStatus(t *testing.T) {
	calls := 0
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return jsonResponse(http.StatusTooManyRequests, map[string]string{"error": "busy"}), nil
		}
		return jsonResponse(http.StatusOK, [][]float32{{3, 4}}), nil
	})}

	m, err := NewTEIModel(TEIConfig{BaseURL: "http://tei", RetryBase: time.Millisecond}, client)
	require.NoError(t, err)
	feats, err := m.FeatureExtract(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, [][][]float32{{{3, 4}}}, feats)
}

func TestTEIModelDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "bad input"}), nil
	})}

	m, err := NewTEIModel(TEIConfig{BaseURL: "http://tei", RetryBase: time.Millisecond}, client)
	require.NoError(t, err)
	_, err = m.FeatureExtract(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewLoaderSelectsProvider(t *testing.T) {
	_, name, err := NewLoader(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModelName, name)

	_, _, err = NewLoader(Config{Provider: "tei"}, nil)
	assert.Error(t, err)

	_, name, err = NewLoader(Config{Provider: "tei", BaseURL: "http://tei"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", name)

	_, _, err = NewLoader(Config{Provider: "onnx"}, nil)
	assert.Error(t, err)
}
