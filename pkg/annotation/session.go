// Package annotation holds the per-frame annotation state machine. A Session
// consumes normalized events from an input adapter, mutates its State and
// re-renders the view from the untouched original after every change.
package annotation

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/frame-annotator/pkg/geometry"
	"github.com/menta2k/frame-annotator/pkg/types"
)

// Outcome is the terminal result of a session
type Outcome int

const (
	Pending Outcome = iota
	Committed
	Skipped
	VideoAborted
	SessionAborted
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Skipped:
		return "skipped"
	case VideoAborted:
		return "video_aborted"
	case SessionAborted:
		return "session_aborted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Done reports whether the outcome ends the session
func (o Outcome) Done() bool { return o != Pending }

// Policy controls editing limits and step sizes
type Policy struct {
	// MaxBoxes caps boxes per frame; 0 means unlimited
	MaxBoxes   int
	ResizeStep float64
	MoveStep   float64
	// HideText drops the angle and class overlays from rendered images
	HideText bool
}

// DefaultPolicy returns a single box per frame with 4px steps
func DefaultPolicy() Policy {
	return Policy{MaxBoxes: 1, ResizeStep: 4, MoveStep: 4}
}

// CommitRequest carries what a Commit action persists
type CommitRequest struct {
	Original  image.Image
	Annotated image.Image
	Boxes     []types.BoundingBox
}

// CommitFunc persists a committed frame. A non-nil error keeps the session pending.
type CommitFunc func(CommitRequest) error

// Session is the annotation of one frame
type Session struct {
	original image.Image
	view     image.Image
	state    *State
	policy   Policy
	commit   CommitFunc
	outcome  Outcome
	logger   *zap.Logger
}

// NewSession starts annotating original. classID is the active class.
func NewSession(original image.Image, classID int, policy Policy, commit CommitFunc, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		original: original,
		state:    NewState(classID),
		policy:   policy,
		commit:   commit,
		logger:   logger,
	}
	s.redraw()
	return s
}

// View returns the current rendered image
func (s *Session) View() image.Image { return s.view }

// State returns a copy of the current state
func (s *Session) State() *State { return s.state.Clone() }

// ClassID returns the active class
func (s *Session) ClassID() int { return s.state.ClassID }

// Outcome returns the current outcome
func (s *Session) Outcome() Outcome { return s.outcome }

// Handle applies one event. The returned error is non-nil only when a commit
// failed; the session then stays pending and can be retried.
func (s *Session) Handle(ev Event) (Outcome, error) {
	if s.outcome.Done() {
		return s.outcome, nil
	}

	var err error
	switch ev.Kind {
	case KindPointerDown:
		err = s.pointerDown(ev.Point)
	case KindPointerMove:
		s.pointerMove(ev.Point)
	case KindPointerUp:
		err = s.pointerUp(ev.Point)
	case KindKey:
		if s.state.Mode != ModeIdle {
			s.logger.Debug("ignoring key during pointer interaction",
				zap.Stringer("event", ev), zap.Stringer("mode", s.state.Mode))
			return s.outcome, nil
		}
		return s.key(ev)
	default:
		err = fmt.Errorf("%w: unknown event kind %d", types.ErrState, ev.Kind)
	}

	if err != nil {
		s.logger.Debug("event ignored", zap.Stringer("event", ev), zap.Error(err))
	}
	return s.outcome, nil
}

func (s *Session) pointerDown(p types.Point) error {
	st := s.state
	if st.Mode != ModeIdle {
		return fmt.Errorf("%w: pointer down while %s", types.ErrState, st.Mode)
	}
	st.Cursor = p

	if i := st.HitTest(p); i >= 0 {
		st.Mode = ModeDragging
		st.Selected = i
		return nil
	}
	if s.policy.MaxBoxes > 0 && len(st.Boxes) >= s.policy.MaxBoxes {
		return fmt.Errorf("%w: frame already has %d boxes", types.ErrState, len(st.Boxes))
	}
	st.Mode = ModeDrawing
	st.Anchor = p
	return nil
}

func (s *Session) pointerMove(p types.Point) {
	st := s.state
	switch st.Mode {
	case ModeDrawing:
		st.Cursor = p
		s.redraw()
	case ModeDragging:
		dx, dy := p.X-st.Cursor.X, p.Y-st.Cursor.Y
		st.Cursor = p
		st.Boxes[st.Selected] = st.Boxes[st.Selected].Translate(dx, dy)
		s.redraw()
	default:
		st.Cursor = p
	}
}

func (s *Session) pointerUp(p types.Point) error {
	st := s.state
	switch st.Mode {
	case ModeDrawing:
		st.Mode = ModeIdle
		st.Cursor = p
		box := types.NewBoundingBox(st.Anchor, p, st.Rotation, st.ClassID)
		if box.Width() == 0 || box.Height() == 0 {
			s.redraw()
			return fmt.Errorf("%w: zero-area box discarded", types.ErrState)
		}
		st.Boxes = append(st.Boxes, box)
		s.logger.Debug("box added",
			zap.Float64("x1", box.X1), zap.Float64("y1", box.Y1),
			zap.Float64("x2", box.X2), zap.Float64("y2", box.Y2),
			zap.Int("class", box.ClassID))
		s.redraw()
	case ModeDragging:
		st.Mode = ModeIdle
		st.Selected = -1
		st.Cursor = p
	default:
		return fmt.Errorf("%w: pointer up while idle", types.ErrState)
	}
	return nil
}

func (s *Session) key(ev Event) (Outcome, error) {
	st := s.state
	if step, ok := ev.Action.rotationStep(); ok {
		st.Rotate(step)
		s.redraw()
		return s.outcome, nil
	}

	switch ev.Action {
	case GrowLength:
		st.Adjust.Length += s.policy.ResizeStep
	case ShrinkLength:
		st.Adjust.Length -= s.policy.ResizeStep
	case GrowHeight:
		st.Adjust.Height += s.policy.ResizeStep
	case ShrinkHeight:
		st.Adjust.Height -= s.policy.ResizeStep
	case MoveLeft:
		st.Adjust.Horizontal -= s.policy.MoveStep
	case MoveRight:
		st.Adjust.Horizontal += s.policy.MoveStep
	case MoveUp:
		st.Adjust.Vertical -= s.policy.MoveStep
	case MoveDown:
		st.Adjust.Vertical += s.policy.MoveStep
	case SelectClass:
		if ev.Class < 0 {
			return s.outcome, nil
		}
		st.ClassID = ev.Class
	case Commit:
		return s.doCommit()
	case Skip:
		s.outcome = Skipped
		return s.outcome, nil
	case AbortVideo:
		s.outcome = VideoAborted
		return s.outcome, nil
	case AbortAll:
		s.outcome = SessionAborted
		return s.outcome, nil
	default:
		return s.outcome, nil
	}
	s.redraw()
	return s.outcome, nil
}

func (s *Session) doCommit() (Outcome, error) {
	req := CommitRequest{
		Original:  s.original,
		Annotated: geometry.Render(s.original, s.scene(false)),
		Boxes:     s.state.EffectiveBoxes(),
	}
	if s.commit != nil {
		if err := s.commit(req); err != nil {
			s.logger.Error("commit failed", zap.Error(err))
			return s.outcome, fmt.Errorf("commit frame: %w", err)
		}
	}
	s.outcome = Committed
	return s.outcome, nil
}

func (s *Session) scene(withPreview bool) geometry.Scene {
	scene := s.state.Scene(withPreview)
	scene.HideText = s.policy.HideText
	return scene
}

func (s *Session) redraw() {
	s.view = geometry.Render(s.original, s.scene(true))
}
