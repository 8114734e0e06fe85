// -- pkg/gateway/gateway.go --
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/prospector-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decider is the single channel to the external multimodal model. It
// returns the raw model text without any trimming or interpretation;
// turning that text into an action is the decoder's job.
type Decider interface {
	Decide(ctx context.Context, image []byte, instruction string) (string, error)
}

// Gateway implements Decider over the provider's HTTP generateContent
// endpoint, enforcing the pacing gate, a hard per-request timeout, and
// a single retry on 429.
type Gateway struct {
	cfg    config.GatewayConfig
	logger *zap.Logger
	client *http.Client
	pacer  *Pacer

	// sleep is injectable so the 429 backoff is testable without waiting.
	sleep sleepFunc
}

// NewGateway creates a Gateway. The pacer is shared process-wide across
// all concurrent runs using this gateway.
func NewGateway(cfg config.GatewayConfig, logger *zap.Logger, pacer *Pacer) *Gateway {
	return &Gateway{
		cfg:    cfg,
		logger: logger.Named("gateway"),
		// Timeouts are governed per request via context, not on the client.
		client: &http.Client{},
		pacer:  pacer,
		sleep:  sleepContext,
	}
}

// Decide sends the screenshot and instruction context to the model and
// returns the raw text of the first candidate.
func (g *Gateway) Decide(ctx context.Context, image []byte, instruction string) (string, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return "", fmt.Errorf("pacing gate: %w", err)
	}
	succeeded := false
	defer func() { g.pacer.Done(succeeded) }()

	text, retryAfter, err := g.attempt(ctx, image, instruction)
	if err == nil {
		succeeded = true
		return text, nil
	}

	var rle *RateLimitedError
	if !errors.As(err, &rle) {
		return "", err
	}

	// 429: suspend for the server-provided interval and retry exactly once.
	g.logger.Warn("Upstream rate limit hit, backing off before single retry",
		zap.Duration("retry_after", retryAfter))
	if sleepErr := g.sleep(ctx, retryAfter); sleepErr != nil {
		return "", fmt.Errorf("rate limit backoff interrupted: %w", sleepErr)
	}

	text, _, err = g.attempt(ctx, image, instruction)
	if err != nil {
		return "", err
	}
	succeeded = true
	return text, nil
}

// attempt performs one HTTP round trip. On 429 it returns a
// *RateLimitedError together with the backoff the server asked for.
func (g *Gateway) attempt(ctx context.Context, image []byte, instruction string) (string, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	body, err := g.buildRequestBody(image, instruction)
	if err != nil {
		return "", 0, fmt.Errorf("building request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(g.cfg.Endpoint, "/"), g.cfg.Model)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("x-goog-api-key", g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Distinguish the hard request timeout from caller cancellation.
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", 0, fmt.Errorf("%w after %s", ErrTimeout, g.cfg.RequestTimeout)
		}
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", 0, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), g.cfg.RetryAfterDefault)
		return "", retryAfter, &RateLimitedError{RetryAfter: retryAfter}
	case resp.StatusCode != http.StatusOK:
		return "", 0, &UpstreamError{
			Status:  resp.StatusCode,
			Message: truncateBody(raw),
		}
	}

	text, err := extractText(raw)
	if err != nil {
		return "", 0, err
	}
	return text, 0, nil
}

// buildRequestBody assembles the generateContent payload. A nil image
// produces a text-only request.
func (g *Gateway) buildRequestBody(image []byte, instruction string) ([]byte, error) {
	parts := []part{{Text: instruction}}
	if len(image) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(image),
		}})
	}

	return json.Marshal(generateRequest{
		Contents: []content{{Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:     g.cfg.Temperature,
			MaxOutputTokens: g.cfg.MaxOutputTokens,
			TopK:            g.cfg.TopK,
			TopP:            g.cfg.TopP,
		},
		SafetySettings: []safetySetting{
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
		},
	})
}

// extractText pulls the candidate text out of a 200 response, surfacing
// safety blocks as a distinct, never-retried failure.
func extractText(raw []byte) (string, error) {
	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &UpstreamError{Status: http.StatusOK, Message: "malformed response body"}
	}

	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", &UpstreamError{
			Status:  http.StatusOK,
			Message: "prompt blocked: " + parsed.PromptFeedback.BlockReason,
			Safety:  true,
		}
	}
	if len(parsed.Candidates) == 0 {
		return "", &UpstreamError{Status: http.StatusOK, Message: "response contained no candidates"}
	}

	cand := parsed.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return "", &UpstreamError{
			Status:  http.StatusOK,
			Message: "candidate suppressed by safety filter",
			Safety:  true,
		}
	}

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// parseRetryAfter reads a Retry-After value in seconds, falling back to
// the configured default when absent or unparseable.
func parseRetryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func truncateBody(raw []byte) string {
	const limit = 512
	s := string(raw)
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
