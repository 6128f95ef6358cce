package drawing

import (
	"slices"
	"strings"

	"github.com/polygon-manager/backend/internal/errs"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// Action is an input to Reduce.
type Action interface{ action() }

// User actions.
type (
	Start struct{ Name string }

	// Click is a pointer position in display coordinates.
	Click struct{ X, Y float64 }

	Finish      struct{}
	Cancel      struct{}
	ClearCanvas struct{}
	Rename      struct{ Name string }

	// Select toggles the highlight on a polygon. Ignored while a call is in
	// flight.
	Select struct{ ID int64 }

	Delete  struct{ ID int64 }
	Refresh struct{}
	Resize  struct{ Viewport geometry.Viewport }
)

// Completion actions, dispatched when a request finishes.
type (
	Created      struct{ Polygon models.Polygon }
	CreateFailed struct{ Err error }
	Deleted      struct{ ID int64 }
	DeleteFailed struct {
		ID  int64
		Err error
	}
	Loaded     struct{ Polygons []models.Polygon }
	LoadFailed struct{ Err error }
)

func (Start) action()        {}
func (Click) action()        {}
func (Finish) action()       {}
func (Cancel) action()       {}
func (ClearCanvas) action()  {}
func (Rename) action()       {}
func (Select) action()       {}
func (Delete) action()       {}
func (Refresh) action()      {}
func (Resize) action()       {}
func (Created) action()      {}
func (CreateFailed) action() {}
func (Deleted) action()      {}
func (DeleteFailed) action() {}
func (Loaded) action()       {}
func (LoadFailed) action()   {}

// Effect is work requested by Reduce.
type Effect interface{ effect() }

type (
	CreateRequest struct {
		Name   string
		Points []geometry.Point
	}
	DeleteRequest struct{ ID int64 }
	ListRequest   struct{}

	// Redraw asks for the canvas to be repainted.
	Redraw struct{}
)

func (CreateRequest) effect() {}
func (DeleteRequest) effect() {}
func (ListRequest) effect()   {}
func (Redraw) effect()        {}

var redraw = []Effect{Redraw{}}

// Reduce applies a to s. The input state is not modified. Actions that are
// not valid in the current state return s unchanged with no effects.
func Reduce(s State, a Action) (State, []Effect) {
	switch a := a.(type) {
	case Start:
		if s.Loading || s.Phase != Idle {
			return s, nil
		}
		if strings.TrimSpace(a.Name) == "" {
			s.Notice = &Notice{Kind: errs.MissingName, Message: "Please enter a polygon name first"}
			return s, redraw
		}
		s.Phase = Drawing
		s.Name = a.Name
		s.Points = nil
		s.Notice = nil
		return s, redraw

	case Click:
		if s.Loading || (s.Phase != Drawing && s.Phase != ReadyToFinish) {
			return s, nil
		}
		s.Points = append(slices.Clip(s.Points), s.Viewport.ToCanvas(a.X, a.Y))
		if len(s.Points) >= geometry.MinPoints {
			s.Phase = ReadyToFinish
		}
		return s, redraw

	case Finish:
		if s.Loading || s.Phase != ReadyToFinish {
			return s, nil
		}
		if _, err := geometry.Validate(s.Name, geometry.Raw(s.Points), s.Limits); err != nil {
			s.Notice = noticeFrom(err)
			return s, redraw
		}
		s.Phase = Submitting
		s.Loading = true
		s.Notice = nil
		return s, []Effect{
			CreateRequest{Name: s.Name, Points: slices.Clone(s.Points)},
			Redraw{},
		}

	case Cancel:
		if s.Phase != Drawing && s.Phase != ReadyToFinish {
			return s, nil
		}
		s = discardSession(s)
		return s, redraw

	case ClearCanvas:
		s = discardSession(s)
		s.Highlight = 0
		return s, redraw

	case Rename:
		if !s.Controls().NameEditable {
			return s, nil
		}
		s.Name = a.Name
		return s, nil

	case Select:
		if s.Loading {
			return s, nil
		}
		if s.Highlight == a.ID {
			s.Highlight = 0
		} else if _, ok := s.Find(a.ID); ok {
			s.Highlight = a.ID
		} else {
			return s, nil
		}
		return s, redraw

	case Delete:
		if s.Loading {
			return s, nil
		}
		s.Loading = true
		s.Notice = nil
		return s, []Effect{DeleteRequest{ID: a.ID}, Redraw{}}

	case Refresh:
		if s.Loading {
			return s, nil
		}
		s.Loading = true
		return s, []Effect{ListRequest{}, Redraw{}}

	case Resize:
		s.Viewport = a.Viewport
		return s, redraw

	case Created:
		s.Loading = false
		s.Polygons = append(slices.Clip(s.Polygons), a.Polygon)
		if s.Phase == Submitting {
			s = discardSession(s)
		}
		return s, redraw

	case CreateFailed:
		s.Loading = false
		s.Notice = noticeFrom(a.Err)
		if s.Phase == Submitting {
			s.Phase = ReadyToFinish
		}
		return s, redraw

	case Deleted:
		s.Loading = false
		s = removePolygon(s, a.ID)
		return s, redraw

	case DeleteFailed:
		s.Loading = false
		s.Notice = noticeFrom(a.Err)
		if errs.Is(a.Err, errs.NotFound) {
			s = removePolygon(s, a.ID)
		}
		return s, redraw

	case Loaded:
		s.Loading = false
		s.Polygons = slices.Clone(a.Polygons)
		if _, ok := s.Find(s.Highlight); !ok {
			s.Highlight = 0
		}
		return s, redraw

	case LoadFailed:
		s.Loading = false
		s.Notice = noticeFrom(a.Err)
		return s, redraw
	}

	return s, nil
}

// discardSession drops unsubmitted points and returns to Idle. A session
// that is already submitting keeps its request in flight.
func discardSession(s State) State {
	s.Phase = Idle
	s.Name = ""
	s.Points = nil
	return s
}

func removePolygon(s State, id int64) State {
	s.Polygons = slices.DeleteFunc(slices.Clone(s.Polygons), func(p models.Polygon) bool {
		return p.ID == id
	})
	if s.Highlight == id {
		s.Highlight = 0
	}
	return s
}
