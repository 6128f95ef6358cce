// Package service implements the polygon operations behind the HTTP API:
// validation, persistence, cache upkeep and the configured operation delay.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/cache"
	"github.com/polygon-manager/backend/internal/config"
	"github.com/polygon-manager/backend/internal/database"
	"github.com/polygon-manager/backend/internal/errs"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
	"github.com/polygon-manager/backend/internal/telemetry"
)

// Options configures a PolygonService.
type Options struct {
	Limits geometry.Limits

	// Delay is applied to every create and delete, and to list when
	// DelayList is set. Zero disables it.
	Delay     time.Duration
	DelayList bool
}

// PolygonService orchestrates polygon operations.
type PolygonService struct {
	repo   database.Repository
	cache  cache.Cache
	tracer trace.Tracer
	logger *zap.Logger
	opts   Options
}

// New creates a PolygonService.
func New(repo database.Repository, c cache.Cache, tracer trace.Tracer, logger *zap.Logger, opts Options) *PolygonService {
	if c == nil {
		c = cache.NoopCache{}
	}
	if tracer == nil {
		tracer = (*telemetry.Provider)(nil).Tracer()
	}
	return &PolygonService{
		repo:   repo,
		cache:  c,
		tracer: tracer,
		logger: logger,
		opts:   opts,
	}
}

// NewFromConfig builds the service from application configuration.
func NewFromConfig(cfg *config.Config, repo database.Repository, c cache.Cache, tp *telemetry.Provider, logger *zap.Logger) *PolygonService {
	return New(repo, c, tp.Tracer(), logger, Options{
		Limits:    cfg.Limits,
		Delay:     cfg.OperationDelay,
		DelayList: cfg.DelayList,
	})
}

// Limits returns the limits the service validates against.
func (s *PolygonService) Limits() geometry.Limits {
	return s.opts.Limits
}

// Create validates the request, stores the polygon and returns it once the
// operation delay has elapsed. Nothing is written when validation fails.
func (s *PolygonService) Create(ctx context.Context, req *models.CreatePolygonRequest) (polygon *models.Polygon, err error) {
	ctx, span := s.tracer.Start(ctx, "polygon.create",
		trace.WithAttributes(attribute.Int("polygon.points", len(req.Points))))
	defer func() { telemetry.EndSpan(span, err) }()

	points, err := geometry.Validate(req.Name, req.Points, s.opts.Limits)
	if err != nil {
		s.logger.Warn("Rejected polygon", zap.String("name", req.Name), zap.Int("points", len(req.Points)), zap.Error(err))
		return nil, err
	}

	polygon, err = s.repo.Create(ctx, req.Name, points)
	if err != nil {
		return nil, fmt.Errorf("failed to create polygon: %w", err)
	}
	s.invalidate(ctx)
	span.SetAttributes(attribute.Int64("polygon.id", polygon.ID))

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("Created polygon", zap.Int64("id", polygon.ID), zap.String("name", polygon.Name))
	return polygon, nil
}

// Delete removes the polygon with the given ID. rawID must be a positive
// decimal integer.
func (s *PolygonService) Delete(ctx context.Context, rawID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "polygon.delete")
	defer func() { telemetry.EndSpan(span, err) }()

	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int64("polygon.id", id))

	if err := s.wait(ctx); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete polygon: %w", err)
	}
	if !deleted {
		s.logger.Debug("Polygon not found for deletion", zap.Int64("id", id))
		return errs.Newf(errs.NotFound, "polygon %d not found", id)
	}
	s.invalidate(ctx)

	s.logger.Info("Deleted polygon", zap.Int64("id", id))
	return nil
}

// List returns all polygons in insertion order.
func (s *PolygonService) List(ctx context.Context) (polygons []models.Polygon, err error) {
	ctx, span := s.tracer.Start(ctx, "polygon.list")
	defer func() { telemetry.EndSpan(span, err) }()

	polygons, err = s.load(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("polygon.count", len(polygons)))

	if s.opts.DelayList {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
	}
	return polygons, nil
}

// Get returns a single polygon.
func (s *PolygonService) Get(ctx context.Context, rawID string) (polygon *models.Polygon, err error) {
	ctx, span := s.tracer.Start(ctx, "polygon.get")
	defer func() { telemetry.EndSpan(span, err) }()

	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}

	polygon, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get polygon: %w", err)
	}
	if polygon == nil {
		return nil, errs.Newf(errs.NotFound, "polygon %d not found", id)
	}
	return polygon, nil
}

// Ping reports whether storage is reachable.
func (s *PolygonService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *PolygonService) load(ctx context.Context) ([]models.Polygon, error) {
	generation, genErr := s.cache.Generation(ctx)

	if cached, found, err := s.cache.GetAll(ctx); err == nil && found {
		s.logger.Debug("Returning cached polygons")
		return cached, nil
	}

	polygons, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list polygons: %w", err)
	}

	if genErr == nil {
		_ = s.cache.SetAll(ctx, generation, polygons)
	}
	return polygons, nil
}

func (s *PolygonService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to invalidate polygon cache", zap.Error(err))
	}
}

// wait blocks for the configured delay. Each call has its own timer, so
// concurrent requests are delayed independently.
func (s *PolygonService) wait(ctx context.Context) error {
	if s.opts.Delay <= 0 {
		return nil
	}

	timer := time.NewTimer(s.opts.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseID parses a positive decimal polygon ID. Signs, whitespace and
// values that overflow int64 are rejected.
func ParseID(raw string) (int64, error) {
	if raw == "" {
		return 0, errs.New(errs.InvalidIdFormat, "polygon id is required")
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, errs.Newf(errs.InvalidIdFormat, "polygon id %q is not a positive integer", raw)
		}
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Newf(errs.InvalidIdFormat, "polygon id %q is not a positive integer", raw)
	}
	return id, nil
}
