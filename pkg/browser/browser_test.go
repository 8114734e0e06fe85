// -- pkg/browser/browser_test.go --
package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampBounds(t *testing.T) {
	vp := Viewport{Width: 375, Height: 812}

	tests := []struct {
		name         string
		x, y         int
		wantX, wantY int
	}{
		{"already in range", 320, 410, 320, 410},
		{"zero corner", 0, 0, 0, 0},
		{"max corner", 374, 811, 374, 811},
		{"beyond width", 375, 400, 374, 400},
		{"far beyond both", 10000, 10000, 374, 811},
		{"negative clamps to zero", -5, -1, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotX, gotY := Clamp(tc.x, tc.y, vp)
			assert.Equal(t, tc.wantX, gotX)
			assert.Equal(t, tc.wantY, gotY)
		})
	}
}

// For any coordinates and any valid viewport, the clamped result stays
// inside [0, width) x [0, height).
func TestClampAlwaysInRange(t *testing.T) {
	viewports := []Viewport{
		{Width: 1, Height: 1},
		{Width: 375, Height: 812},
		{Width: 1920, Height: 1080},
	}
	coords := []int{-1 << 30, -1, 0, 1, 99, 811, 812, 1 << 30}

	for _, vp := range viewports {
		for _, x := range coords {
			for _, y := range coords {
				gotX, gotY := Clamp(x, y, vp)
				assert.GreaterOrEqual(t, gotX, 0)
				assert.Less(t, gotX, vp.Width)
				assert.GreaterOrEqual(t, gotY, 0)
				assert.Less(t, gotY, vp.Height)
			}
		}
	}
}

func TestViewportValid(t *testing.T) {
	assert.True(t, Viewport{Width: 1, Height: 1}.Valid())
	assert.False(t, Viewport{}.Valid())
	assert.False(t, Viewport{Width: 100, Height: 0}.Valid())
	assert.False(t, Viewport{Width: -1, Height: 100}.Valid())
}

func TestOperationErrorWrapsCause(t *testing.T) {
	cause := errors.New("websocket closed")
	err := &OperationError{Op: "screenshot", Cause: cause}

	assert.Contains(t, err.Error(), "screenshot")
	assert.ErrorIs(t, err, cause)
}
