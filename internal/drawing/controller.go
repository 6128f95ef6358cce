package drawing

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// PolygonAPI is the remote polygon service.
type PolygonAPI interface {
	List(ctx context.Context) ([]models.Polygon, error)
	Create(ctx context.Context, name string, points []geometry.Point) (*models.Polygon, error)
	Delete(ctx context.Context, id int64) error
}

// Controller owns the client state. Actions are applied one at a time;
// requests run in the background and feed their outcome back as actions.
// Requests are never cancelled once issued.
type Controller struct {
	api    PolygonAPI
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	subscribers []func(State)

	inflight sync.WaitGroup
}

// NewController creates a controller starting from initial.
func NewController(api PolygonAPI, initial State, logger *zap.Logger) *Controller {
	return &Controller{
		api:    api,
		logger: logger,
		state:  initial,
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Subscribe registers fn to be called with a snapshot after every change
// that needs a redraw. fn runs with the controller locked and must not
// dispatch.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Dispatch applies a and starts any requests it produces.
func (c *Controller) Dispatch(a Action) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, effects := Reduce(c.state, a)
	c.state = next

	for _, e := range effects {
		switch e := e.(type) {
		case Redraw:
			snapshot := c.state.Clone()
			for _, fn := range c.subscribers {
				fn(snapshot)
			}
		case CreateRequest, DeleteRequest, ListRequest:
			c.inflight.Add(1)
			go c.run(e)
		}
	}
}

// Wait blocks until no request is in flight.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) run(e Effect) {
	defer c.inflight.Done()
	ctx := context.Background()

	switch e := e.(type) {
	case CreateRequest:
		polygon, err := c.api.Create(ctx, e.Name, e.Points)
		if err != nil {
			c.logger.Warn("Create failed", zap.String("name", e.Name), zap.Error(err))
			c.Dispatch(CreateFailed{Err: err})
			return
		}
		c.logger.Debug("Created polygon", zap.Int64("id", polygon.ID))
		c.Dispatch(Created{Polygon: *polygon})

	case DeleteRequest:
		if err := c.api.Delete(ctx, e.ID); err != nil {
			c.logger.Warn("Delete failed", zap.Int64("id", e.ID), zap.Error(err))
			c.Dispatch(DeleteFailed{ID: e.ID, Err: err})
			return
		}
		c.Dispatch(Deleted{ID: e.ID})

	case ListRequest:
		polygons, err := c.api.List(ctx)
		if err != nil {
			c.logger.Warn("List failed", zap.Error(err))
			c.Dispatch(LoadFailed{Err: err})
			return
		}
		c.Dispatch(Loaded{Polygons: polygons})
	}
}
