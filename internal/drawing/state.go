// Package drawing holds the client-side drawing session and polygon
// collection. State changes go through Reduce, a pure function from a state
// and an action to the next state and the effects to run; Controller owns a
// State and runs those effects.
package drawing

import (
	"errors"
	"slices"

	"github.com/polygon-manager/backend/internal/errs"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// Default canvas size in logical pixels.
const (
	CanvasWidth  = 1920
	CanvasHeight = 1080
)

// Phase is the drawing session phase.
type Phase int

const (
	Idle Phase = iota
	Drawing
	ReadyToFinish
	Submitting
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Drawing:
		return "Drawing"
	case ReadyToFinish:
		return "ReadyToFinish"
	case Submitting:
		return "Submitting"
	}
	return "Unknown"
}

// Notice is a message for the user. Notices never block interaction.
type Notice struct {
	Kind    errs.Kind
	Message string
}

func noticeFrom(err error) *Notice {
	var e *errs.Error
	if errors.As(err, &e) {
		return &Notice{Kind: e.Kind, Message: e.Message}
	}
	return &Notice{Kind: errs.Internal, Message: err.Error()}
}

// State is the complete client state.
type State struct {
	Phase  Phase
	Name   string
	Points []geometry.Point

	Polygons []models.Polygon

	// Highlight is the selected polygon id, or 0 for none.
	Highlight int64

	// Loading is set while a create, delete or list call is in flight.
	Loading bool

	Notice   *Notice
	Viewport geometry.Viewport
	Limits   geometry.Limits
}

// NewState returns an idle state for a canvas of the default size.
func NewState(limits geometry.Limits) State {
	return State{
		Viewport: geometry.Viewport{
			LogicalWidth:   CanvasWidth,
			LogicalHeight:  CanvasHeight,
			RenderedWidth:  CanvasWidth,
			RenderedHeight: CanvasHeight,
		},
		Limits: limits,
	}
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	s.Points = slices.Clone(s.Points)
	polygons := make([]models.Polygon, len(s.Polygons))
	for i, p := range s.Polygons {
		p.Points = slices.Clone(p.Points)
		polygons[i] = p
	}
	s.Polygons = polygons
	if s.Notice != nil {
		n := *s.Notice
		s.Notice = &n
	}
	return s
}

// Find returns the polygon with the given id.
func (s State) Find(id int64) (models.Polygon, bool) {
	for _, p := range s.Polygons {
		if p.ID == id {
			return p, true
		}
	}
	return models.Polygon{}, false
}

// Interactive reports whether the canvas accepts input.
func (s State) Interactive() bool {
	return !s.Loading
}

// Controls describes which inputs are enabled.
type Controls struct {
	Start        bool
	Finish       bool
	Cancel       bool
	NameEditable bool
	Delete       bool
}

// Controls derives enabled inputs from the state.
func (s State) Controls() Controls {
	if s.Loading {
		return Controls{}
	}
	return Controls{
		Start:        s.Phase == Idle,
		Finish:       s.Phase == ReadyToFinish,
		Cancel:       s.Phase == Drawing || s.Phase == ReadyToFinish,
		NameEditable: s.Phase == Idle || (s.Phase == ReadyToFinish && s.Notice != nil),
		Delete:       true,
	}
}
