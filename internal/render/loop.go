package render

import (
	"context"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/drawing"
)

// Sink receives finished frames.
type Sink func(frame *image.RGBA)

// Loop repaints whenever the controller asks for a redraw or the background
// changes. Requests that arrive while a frame is being painted collapse
// into one repaint.
type Loop struct {
	ctrl   *drawing.Controller
	sink   Sink
	logger *zap.Logger

	mu sync.Mutex
	bg Background

	dirty chan struct{}
}

// NewLoop creates a loop and subscribes it to ctrl.
func NewLoop(ctrl *drawing.Controller, sink Sink, logger *zap.Logger) *Loop {
	l := &Loop{
		ctrl:   ctrl,
		sink:   sink,
		logger: logger,
		dirty:  make(chan struct{}, 1),
	}
	ctrl.Subscribe(func(drawing.State) { l.Invalidate() })
	return l
}

// Invalidate schedules a repaint.
func (l *Loop) Invalidate() {
	select {
	case l.dirty <- struct{}{}:
	default:
	}
}

// SetBackground replaces the background and schedules a repaint.
func (l *Loop) SetBackground(bg Background) {
	l.mu.Lock()
	l.bg = bg
	l.mu.Unlock()
	l.Invalidate()
}

// LoadBackground loads path in the background. The frame is repainted when
// loading finishes, whether or not it succeeded.
func (l *Loop) LoadBackground(path string) {
	go func() {
		bg, err := LoadBackground(path)
		if err != nil {
			l.logger.Warn("Background unavailable, using fallback", zap.String("path", path), zap.Error(err))
		}
		l.SetBackground(bg)
	}()
}

// Frame paints the current state.
func (l *Loop) Frame() *image.RGBA {
	l.mu.Lock()
	bg := l.bg
	l.mu.Unlock()

	scene := SceneFrom(l.ctrl.State(), bg)
	ops := Plan(scene)
	l.logger.Debug("Painting frame", zap.String("plan", Describe(ops)))
	return Rasterize(ops, scene.Width, scene.Height)
}

// Run paints the first frame and then repaints on demand until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.Invalidate()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.dirty:
			l.sink(l.Frame())
		}
	}
}
