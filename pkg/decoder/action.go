// -- pkg/decoder/action.go --
package decoder

import "fmt"

// Kind identifies which variant of an Action is populated.
type Kind string

const (
	KindClick  Kind = "CLICK"
	KindType   Kind = "TYPE"
	KindScroll Kind = "SCROLL"
	KindDone   Kind = "DONE"
)

// Direction is a scroll direction.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Action is one atomic browser command decided by the model for the
// current step. Exactly one variant is populated, selected by Kind.
type Action struct {
	Kind Kind

	// Click
	X int
	Y int

	// Type
	Text   string
	Submit bool

	// Scroll
	Direction Direction

	// Done
	Summary string
}

// String renders the action in the same one-line protocol the model
// speaks, which keeps action logs readable.
func (a Action) String() string {
	switch a.Kind {
	case KindClick:
		return fmt.Sprintf("CLICK %d %d", a.X, a.Y)
	case KindType:
		if a.Submit {
			return fmt.Sprintf("TYPE %s SUBMIT", a.Text)
		}
		return fmt.Sprintf("TYPE %s", a.Text)
	case KindScroll:
		return fmt.Sprintf("SCROLL %s", a.Direction)
	case KindDone:
		return fmt.Sprintf("DONE %s", a.Summary)
	}
	return string(a.Kind)
}

// ScrollDown is the safe, information-gaining default substituted for
// unparseable model output and for rejected click coordinates.
func ScrollDown() Action {
	return Action{Kind: KindScroll, Direction: DirectionDown}
}
