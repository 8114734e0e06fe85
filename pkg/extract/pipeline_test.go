// -- pkg/extract/pipeline_test.go --
package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/prospector-cli/internal/config"
)

// stubPort implements just enough of browser.ControlPort for pipeline
// tests: an Evaluate that serves canned page markup.
type stubPort struct {
	pageHTML string
	evalErr  error
}

func (s *stubPort) Navigate(context.Context, string) error        { return nil }
func (s *stubPort) Screenshot(context.Context) ([]byte, error)    { return nil, nil }
func (s *stubPort) Click(context.Context, int, int) error         { return nil }
func (s *stubPort) Type(context.Context, string, bool) error      { return nil }
func (s *stubPort) Scroll(context.Context, string) error          { return nil }
func (s *stubPort) CurrentURL(context.Context) (string, error)    { return "https://acme.example", nil }
func (s *stubPort) Close(context.Context) error                   { return nil }
func (s *stubPort) Evaluate(context.Context, string) (string, error) {
	return s.pageHTML, s.evalErr
}

func testExtractionConfig() config.ExtractionConfig {
	return config.ExtractionConfig{
		VisionWeight:  0.9,
		BothBoost:     1.1,
		MinConfidence: 0.6,
		MaxContacts:   10,
	}
}

func TestPipelineScanMergesBothSources(t *testing.T) {
	gw := &fakeDecider{response: `{"contacts":[
		{"value":"SALES@acme.io","type":"email","confidence":0.8,"context":"hero section"}
	]}`}
	port := &stubPort{pageHTML: `<html><body><footer>sales@acme.io</footer></body></html>`}

	p := NewPipeline(testExtractionConfig(), zaptest.NewLogger(t), gw)
	got := p.Scan(context.Background(), port, []byte{1, 2, 3}, "acme")

	require.Len(t, got, 1)
	assert.Equal(t, "sales@acme.io", got[0].Value)
	assert.Equal(t, SourceBoth, got[0].Source)
	assert.Equal(t, []byte{1, 2, 3}, gw.image)
}

func TestPipelineScanSkipsVisionWithoutScreenshot(t *testing.T) {
	gw := &fakeDecider{response: `{"contacts":[{"value":"never@acme.io","type":"email","confidence":0.9}]}`}
	port := &stubPort{pageHTML: `<html><body><footer>text@acme.io</footer></body></html>`}

	p := NewPipeline(testExtractionConfig(), zaptest.NewLogger(t), gw)
	got := p.Scan(context.Background(), port, nil, "acme")

	require.Len(t, got, 1)
	assert.Equal(t, "text@acme.io", got[0].Value)
	assert.Nil(t, gw.image, "gateway must not be called without a screenshot")
}

func TestPipelineScanAbsorbsExtractorFailures(t *testing.T) {
	t.Run("markup read failure", func(t *testing.T) {
		gw := &fakeDecider{response: `{"contacts":[{"value":"vision@acme.io","type":"email","confidence":0.9}]}`}
		port := &stubPort{evalErr: errors.New("page went away")}

		p := NewPipeline(testExtractionConfig(), zaptest.NewLogger(t), gw)
		got := p.Scan(context.Background(), port, []byte{1}, "acme")

		require.Len(t, got, 1)
		assert.Equal(t, "vision@acme.io", got[0].Value)
		assert.Equal(t, SourceVision, got[0].Source)
	})

	t.Run("vision failure", func(t *testing.T) {
		gw := &fakeDecider{err: errors.New("rate limited twice")}
		port := &stubPort{pageHTML: `<html><body><footer>text@acme.io</footer></body></html>`}

		p := NewPipeline(testExtractionConfig(), zaptest.NewLogger(t), gw)
		got := p.Scan(context.Background(), port, []byte{1}, "acme")

		require.Len(t, got, 1)
		assert.Equal(t, "text@acme.io", got[0].Value)
	})

	t.Run("both fail", func(t *testing.T) {
		gw := &fakeDecider{err: errors.New("down")}
		port := &stubPort{evalErr: errors.New("down too")}

		p := NewPipeline(testExtractionConfig(), zaptest.NewLogger(t), gw)
		assert.Empty(t, p.Scan(context.Background(), port, []byte{1}, "acme"))
	})
}
