package annotation

import (
	"fmt"
	"strings"

	"github.com/menta2k/frame-annotator/pkg/types"
)

// Action is a normalized keyboard command
type Action int

const (
	ActionNone Action = iota
	RotateCCW1
	RotateCCW5
	RotateCCW15
	RotateCW1
	RotateCW5
	RotateCW15
	GrowLength
	ShrinkLength
	GrowHeight
	ShrinkHeight
	MoveLeft
	MoveRight
	MoveUp
	MoveDown
	SelectClass
	Commit
	Skip
	AbortVideo
	AbortAll
)

var actionNames = map[Action]string{
	ActionNone:   "none",
	RotateCCW1:   "rotate_ccw_1",
	RotateCCW5:   "rotate_ccw_5",
	RotateCCW15:  "rotate_ccw_15",
	RotateCW1:    "rotate_cw_1",
	RotateCW5:    "rotate_cw_5",
	RotateCW15:   "rotate_cw_15",
	GrowLength:   "grow_length",
	ShrinkLength: "shrink_length",
	GrowHeight:   "grow_height",
	ShrinkHeight: "shrink_height",
	MoveLeft:     "move_left",
	MoveRight:    "move_right",
	MoveUp:       "move_up",
	MoveDown:     "move_down",
	SelectClass:  "select_class",
	Commit:       "commit",
	Skip:         "skip",
	AbortVideo:   "abort_video",
	AbortAll:     "abort_all",
}

// String returns the config name of the action
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction resolves a config name
func ParseAction(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for a, n := range actionNames {
		if n == name && a != ActionNone {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("unknown action %q", name)
}

// Actions lists every bindable action in declaration order
func Actions() []Action {
	out := make([]Action, 0, len(actionNames)-1)
	for a := RotateCCW1; a <= AbortAll; a++ {
		out = append(out, a)
	}
	return out
}

// rotationStep returns the signed degrees a rotate action applies
func (a Action) rotationStep() (float64, bool) {
	switch a {
	case RotateCCW1:
		return 1, true
	case RotateCCW5:
		return 5, true
	case RotateCCW15:
		return 15, true
	case RotateCW1:
		return -1, true
	case RotateCW5:
		return -5, true
	case RotateCW15:
		return -15, true
	}
	return 0, false
}

// Kind separates pointer and keyboard events
type Kind int

const (
	KindKey Kind = iota
	KindPointerDown
	KindPointerMove
	KindPointerUp
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindPointerDown:
		return "down"
	case KindPointerMove:
		return "move"
	case KindPointerUp:
		return "up"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one input command produced by an input adapter
type Event struct {
	Kind   Kind
	Action Action
	// Class is the selected class for SelectClass
	Class int
	// Point is the pointer position for pointer events
	Point types.Point
}

// Key builds a keyboard event
func Key(a Action) Event { return Event{Kind: KindKey, Action: a} }

// Class builds a class selection event
func Class(id int) Event { return Event{Kind: KindKey, Action: SelectClass, Class: id} }

// PointerDown builds a button-press event
func PointerDown(x, y float64) Event {
	return Event{Kind: KindPointerDown, Point: types.Point{X: x, Y: y}}
}

// PointerMove builds a pointer-move event
func PointerMove(x, y float64) Event {
	return Event{Kind: KindPointerMove, Point: types.Point{X: x, Y: y}}
}

// PointerUp builds a button-release event
func PointerUp(x, y float64) Event {
	return Event{Kind: KindPointerUp, Point: types.Point{X: x, Y: y}}
}

func (e Event) String() string {
	if e.Kind == KindKey {
		if e.Action == SelectClass {
			return fmt.Sprintf("key %s %d", e.Action, e.Class)
		}
		return "key " + e.Action.String()
	}
	return fmt.Sprintf("%s %.0f %.0f", e.Kind, e.Point.X, e.Point.Y)
}
