// -- pkg/decoder/decoder_test.go --
package decoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestDecoder() (*Decoder, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return NewDecoder(zap.New(core)), logs
}

func TestParseGrammar(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{
			name: "click with integer coordinates",
			in:   "CLICK 320 410",
			want: Action{Kind: KindClick, X: 320, Y: 410},
		},
		{
			name: "click with decimal coordinates rounds",
			in:   "CLICK 320.6 409.4",
			want: Action{Kind: KindClick, X: 321, Y: 409},
		},
		{
			name: "click embedded in surrounding text",
			in:   "I will CLICK 10 20 on the login button",
			want: Action{Kind: KindClick, X: 10, Y: 20},
		},
		{
			name: "type with submit",
			in:   "TYPE hello world SUBMIT",
			want: Action{Kind: KindType, Text: "hello world", Submit: true},
		},
		{
			name: "type without submit",
			in:   "TYPE plumbers near portland",
			want: Action{Kind: KindType, Text: "plumbers near portland", Submit: false},
		},
		{
			name: "type submit marker is case-insensitive",
			in:   "TYPE query submit",
			want: Action{Kind: KindType, Text: "query", Submit: true},
		},
		{
			name: "scroll down",
			in:   "SCROLL DOWN",
			want: Action{Kind: KindScroll, Direction: DirectionDown},
		},
		{
			name: "scroll up",
			in:   "SCROLL UP",
			want: Action{Kind: KindScroll, Direction: DirectionUp},
		},
		{
			name: "scroll lowercase direction",
			in:   "SCROLL up",
			want: Action{Kind: KindScroll, Direction: DirectionUp},
		},
		{
			name: "scroll mixed-case direction",
			in:   "SCROLL Down",
			want: Action{Kind: KindScroll, Direction: DirectionDown},
		},
		{
			name: "done with summary",
			in:   "DONE found three contacts on the about page",
			want: Action{Kind: KindDone, Summary: "found three contacts on the about page"},
		},
		{
			name: "done lowercase with default summary",
			in:   "done",
			want: Action{Kind: KindDone, Summary: "Task completed"},
		},
		{
			name: "done takes priority over click",
			in:   "DONE I clicked CLICK 5 5 already",
			want: Action{Kind: KindDone, Summary: "I clicked CLICK 5 5 already"},
		},
		{
			name: "click takes priority over type",
			in:   "CLICK 5 9 then TYPE something",
			want: Action{Kind: KindClick, X: 5, Y: 9},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := newTestDecoder()
			assert.Equal(t, tc.want, d.Parse(tc.in))
		})
	}
}

func TestParseFallback(t *testing.T) {
	fallbackInputs := []string{
		"",
		"Let me scroll down to see more",
		"click here maybe?",
		"\x00\xff\xfe binary garbage",
		strings.Repeat("lorem ipsum ", 500),
		"TYPE\nwith the content on the next line",
	}

	for _, in := range fallbackInputs {
		d, logs := newTestDecoder()
		got := d.Parse(in)
		assert.Equal(t, ScrollDown(), got, "input %q", in)
		require.Equal(t, 1, logs.Len(), "fallback must be logged for %q", in)
		assert.Contains(t, logs.All()[0].Message, "Unrecognized")
	}
}

// Parse must be total: any input returns a valid Action and never panics.
func TestParseTotality(t *testing.T) {
	d, _ := newTestDecoder()
	inputs := []string{
		"CLICK",
		"CLICK 12",
		"CLICK x y",
		"TYPE ",
		"SCROLL",
		"SCROLL SIDEWAYS",
		"DONE\nwith\nnewlines in the summary",
		"\n\n\nCLICK 1 2\n\n",
	}
	for _, in := range inputs {
		got := d.Parse(in)
		switch got.Kind {
		case KindClick, KindType, KindScroll, KindDone:
		default:
			t.Fatalf("Parse(%q) produced invalid kind %q", in, got.Kind)
		}
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "CLICK 10 20", Action{Kind: KindClick, X: 10, Y: 20}.String())
	assert.Equal(t, "TYPE hi SUBMIT", Action{Kind: KindType, Text: "hi", Submit: true}.String())
	assert.Equal(t, "SCROLL down", ScrollDown().String())
	assert.Equal(t, "DONE ok", Action{Kind: KindDone, Summary: "ok"}.String())
}
