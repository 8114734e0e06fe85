// -- pkg/browser/session.go --
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/prospector-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session implements ControlPort over a dedicated headless Chrome
// process driven through the DevTools protocol.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// NewSession launches the browser process, opens a tab, and verifies it
// is responsive.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	s := &Session{
		cfg:    cfg,
		logger: logger.Named("browser"),
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, s.buildAllocatorOptions()...)
	s.allocCtx = allocCtx
	s.allocCancel = allocCancel

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel

	// Confirm the browser starts and responds before handing it out.
	probeCtx, cancelProbe := context.WithTimeout(tabCtx, 30*time.Second)
	defer cancelProbe()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		s.allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s.logger.Info("Browser session ready",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight))
	return s, nil
}

// buildAllocatorOptions assembles launch flags. The list is built
// explicitly rather than from DefaultExecAllocatorOptions so the
// automation-revealing flags never reach the browser.
func (s *Session) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", s.cfg.Headless),
		chromedp.WindowSize(s.cfg.ViewportWidth, s.cfg.ViewportHeight),
	}
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}

	for _, arg := range s.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	return opts
}

// run executes chromedp actions on the session tab, bounded by the
// caller's context.
func (s *Session) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContext(ctx, s.tabCtx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return &OperationError{Op: op, Cause: err}
	}
	return nil
}

// mergeContext derives a context from the tab that is also cancelled
// when the caller's context ends.
func mergeContext(caller, tab context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(caller, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// Navigate implements ControlPort.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx := ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	return s.run(navCtx, "navigate",
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Screenshot implements ControlPort. The returned buffer belongs to the
// caller and is not retained by the session.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, "screenshot", chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Click implements ControlPort. The request is validated and clamped
// against the live viewport before dispatch.
func (s *Session) Click(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("%w: (%d, %d)", ErrInvalidCoordinates, x, y)
	}

	vp, err := s.viewport(ctx)
	if err != nil || !vp.Valid() {
		return fmt.Errorf("%w: viewport unavailable", ErrInvalidCoordinates)
	}

	cx, cy := Clamp(x, y, vp)
	if cx != x || cy != y {
		s.logger.Debug("Clamped click coordinates",
			zap.Int("x", x), zap.Int("y", y),
			zap.Int("clamped_x", cx), zap.Int("clamped_y", cy))
	}
	return s.run(ctx, "click", chromedp.MouseClickXY(float64(cx), float64(cy)))
}

// Type implements ControlPort. Input is paced one character at a time
// to emulate human cadence; submit sends a single Enter at the end.
func (s *Session) Type(ctx context.Context, text string, submit bool) error {
	return s.run(ctx, "type", chromedp.ActionFunc(func(ctx context.Context) error {
		for _, r := range text {
			err := chromedp.SendKeys("document.activeElement", string(r), chromedp.ByJSPath).Do(ctx)
			if err != nil {
				return fmt.Errorf("sending key %q: %w", r, err)
			}
			if s.cfg.TypeCharDelay > 0 {
				if err := chromedp.Sleep(s.cfg.TypeCharDelay).Do(ctx); err != nil {
					return err
				}
			}
		}
		if submit {
			return chromedp.SendKeys("document.activeElement", kb.Enter, chromedp.ByJSPath).Do(ctx)
		}
		return nil
	}))
}

// Scroll implements ControlPort, moving roughly 80% of a viewport.
func (s *Session) Scroll(ctx context.Context, direction string) error {
	delta := "window.innerHeight * 0.8"
	if direction == "up" {
		delta = "-window.innerHeight * 0.8"
	}
	script := fmt.Sprintf("(() => { window.scrollBy({top: %s, behavior: 'instant'}); return true; })()", delta)
	var done bool
	return s.run(ctx, "scroll", chromedp.Evaluate(script, &done))
}

// CurrentURL implements ControlPort.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, "current_url", chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Evaluate implements ControlPort.
func (s *Session) Evaluate(ctx context.Context, script string) (string, error) {
	var raw []byte
	if err := s.run(ctx, "evaluate", chromedp.Evaluate(script, &raw)); err != nil {
		return "", err
	}
	// String results are returned verbatim, everything else as JSON.
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	return string(raw), nil
}

// viewport reads the live viewport dimensions from the page.
func (s *Session) viewport(ctx context.Context) (Viewport, error) {
	var dims [2]int
	err := s.run(ctx, "viewport", chromedp.Evaluate("[window.innerWidth, window.innerHeight]", &dims))
	if err != nil {
		return Viewport{}, err
	}
	return Viewport{Width: dims[0], Height: dims[1]}, nil
}

// Close implements ControlPort, shutting down the tab and the browser
// process.
func (s *Session) Close(ctx context.Context) error {
	s.logger.Info("Closing browser session")
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
		select {
		case <-s.allocCtx.Done():
		case <-ctx.Done():
			return &OperationError{Op: "close", Cause: ctx.Err()}
		}
	}
	return nil
}
