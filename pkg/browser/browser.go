// -- pkg/browser/browser.go --
package browser

import (
	"context"
	"errors"
	"fmt"
)

// ControlPort is the abstract capability set the agent loop drives the
// browser through. Implementations translate their backend's failures
// into *OperationError so the loop logs a single error taxonomy.
type ControlPort interface {
	// Navigate loads a URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Click performs a click at viewport coordinates. Coordinates are
	// clamped against the live viewport; requests that make no sense
	// even after clamping fail with ErrInvalidCoordinates.
	Click(ctx context.Context, x, y int) error

	// Type sends text into the focused element one character at a time.
	// submit appends a single commit keypress after the last character.
	Type(ctx context.Context, text string, submit bool) error

	// Scroll moves the viewport "up" or "down".
	Scroll(ctx context.Context, direction string) error

	// CurrentURL reports the page the session is on.
	CurrentURL(ctx context.Context) (string, error)

	// Evaluate runs a script in the page and returns its value. String
	// results come back verbatim; other values as their JSON encoding.
	Evaluate(ctx context.Context, script string) (string, error)

	// Close terminates the session and the underlying browser.
	Close(ctx context.Context) error
}

// Viewport is the live page viewport used to validate click targets.
type Viewport struct {
	Width  int
	Height int
}

// Valid reports whether the viewport has usable dimensions.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}

// ErrInvalidCoordinates marks a click request that cannot be mapped to
// the page even after clamping. The agent loop substitutes a scroll
// instead of aborting the run.
var ErrInvalidCoordinates = errors.New("browser: invalid coordinates")

// OperationError is the uniform wrapper for control-port failures,
// regardless of the underlying backend.
type OperationError struct {
	Op    string
	Cause error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("browser: operation %q failed: %v", e.Op, e.Cause)
}

func (e *OperationError) Unwrap() error { return e.Cause }

// Clamp constrains coordinates to [0, width) x [0, height). It is total
// over all inputs; rejecting senseless requests is the adapter's job.
func Clamp(x, y int, vp Viewport) (int, int) {
	return clampAxis(x, vp.Width), clampAxis(y, vp.Height)
}

func clampAxis(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit-1 {
		return limit - 1
	}
	return v
}
