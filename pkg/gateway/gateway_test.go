// -- pkg/gateway/gateway_test.go --
package gateway

import (
	"context"
	stdjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/prospector-cli/internal/config"
)

func testGatewayConfig(endpoint string) config.GatewayConfig {
	return config.GatewayConfig{
		Endpoint:          endpoint,
		Model:             "test-model",
		APIKey:            "test-key",
		RequestsPerMinute: 6000,
		RequestTimeout:    5 * time.Second,
		RetryAfterDefault: 60 * time.Second,
		Temperature:       0.2,
		MaxOutputTokens:   256,
	}
}

// newTestGateway builds a gateway against the given server with an
// unpaced pacer and a recording, non-blocking backoff sleep.
func newTestGateway(t *testing.T, srv *httptest.Server) (*Gateway, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	g := NewGateway(testGatewayConfig(srv.URL), zaptest.NewLogger(t), NewPacer(0))
	g.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return g, &slept
}

func candidateResponse(text string) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
	b, _ := stdjson.Marshal(resp)
	return string(b)
}

func TestDecideReturnsRawCandidateText(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "test-model:generateContent")
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, stdjson.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(candidateResponse("  CLICK 10 20  ")))
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv)
	text, err := g.Decide(context.Background(), []byte{0x89, 0x50}, "find the contact page")

	require.NoError(t, err)
	// Raw text, untrimmed: interpretation belongs to the decoder.
	assert.Equal(t, "  CLICK 10 20  ", text)

	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 2)
	assert.Equal(t, "find the contact page", gotBody.Contents[0].Parts[0].Text)
	require.NotNil(t, gotBody.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", gotBody.Contents[0].Parts[1].InlineData.MimeType)
	assert.Equal(t, 256, gotBody.GenerationConfig.MaxOutputTokens)
}

func TestDecideRetriesOnceAfter429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(candidateResponse("DONE ok")))
	}))
	defer srv.Close()

	g, slept := newTestGateway(t, srv)
	text, err := g.Decide(context.Background(), nil, "task")

	require.NoError(t, err)
	assert.Equal(t, "DONE ok", text)
	assert.Equal(t, int32(2), calls.Load())
	// The single retry waited for the server-provided interval.
	require.Len(t, *slept, 1)
	assert.Equal(t, 5*time.Second, (*slept)[0])
}

func TestDecideSurfacesRateLimitedAfterSecond429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g, slept := newTestGateway(t, srv)
	_, err := g.Decide(context.Background(), nil, "task")

	require.Error(t, err)
	var rle *RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 7*time.Second, rle.RetryAfter)
	// Exactly one retry: two upstream calls, one backoff sleep.
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, *slept, 1)
}

func TestDecide429WithoutHeaderUsesDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g, slept := newTestGateway(t, srv)
	_, err := g.Decide(context.Background(), nil, "task")

	require.Error(t, err)
	require.Len(t, *slept, 1)
	assert.Equal(t, 60*time.Second, (*slept)[0])
}

func TestDecideTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	g, slept := newTestGateway(t, srv)
	g.cfg.RequestTimeout = 50 * time.Millisecond

	_, err := g.Decide(context.Background(), nil, "task")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	// No implicit retry on timeout.
	assert.Empty(t, *slept)
}

func TestDecideNonRetryableUpstreamError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid argument"}}`))
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv)
	_, err := g.Decide(context.Background(), nil, "task")

	require.Error(t, err)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadRequest, ue.Status)
	assert.False(t, ue.Safety)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecideSafetyBlockIsDistinctAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv)
	_, err := g.Decide(context.Background(), nil, "task")

	require.Error(t, err)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.True(t, ue.Safety)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecideSuppressedCandidateIsSafetyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"finishReason":"SAFETY"}]}`))
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv)
	_, err := g.Decide(context.Background(), nil, "task")

	require.Error(t, err)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.True(t, ue.Safety)
}

func TestDecideTextOnlyRequestOmitsInlineData(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, stdjson.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(candidateResponse("ok")))
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv)
	_, err := g.Decide(context.Background(), nil, "text only")

	require.NoError(t, err)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Nil(t, gotBody.Contents[0].Parts[0].InlineData)
}

func TestParseRetryAfter(t *testing.T) {
	fallback := 60 * time.Second
	assert.Equal(t, 5*time.Second, parseRetryAfter("5", fallback))
	assert.Equal(t, fallback, parseRetryAfter("", fallback))
	assert.Equal(t, fallback, parseRetryAfter("soon", fallback))
	assert.Equal(t, fallback, parseRetryAfter("-3", fallback))
}
