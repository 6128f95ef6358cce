package geometry

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/polygon-manager/backend/internal/errs"
)

// MinPoints is the smallest number of vertices that closes a polygon.
const MinPoints = 3

// Limits bounds what a polygon may contain. Zero fields fall back to
// DefaultLimits.
type Limits struct {
	MaxCoordinate  float64 `yaml:"max_coordinate"`
	MaxNameLength  int     `yaml:"max_name_length"`
	MaxPointsCount int     `yaml:"max_points_count"`
}

// DefaultLimits returns the limits used when nothing is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxCoordinate:  1_000_000,
		MaxNameLength:  255,
		MaxPointsCount: 10_000,
	}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.MaxCoordinate <= 0 {
		l.MaxCoordinate = d.MaxCoordinate
	}
	if l.MaxNameLength <= 0 {
		l.MaxNameLength = d.MaxNameLength
	}
	if l.MaxPointsCount <= 0 {
		l.MaxPointsCount = d.MaxPointsCount
	}
	return l
}

// Validate checks the name and then the points, returning the first
// violation. On success it returns the decoded points in input order.
func Validate(name string, points []RawPoint, limits Limits) ([]Point, error) {
	if err := ValidateName(name, limits); err != nil {
		return nil, err
	}
	return ValidatePoints(points, limits)
}

// ValidateName requires a non-blank name no longer than MaxNameLength
// characters once surrounding whitespace is trimmed.
func ValidateName(name string, limits Limits) error {
	limits = limits.normalized()

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errs.New(errs.EmptyName, "polygon name is required")
	}
	if n := utf8.RuneCountInString(trimmed); n > limits.MaxNameLength {
		return errs.Newf(errs.NameTooLong, "polygon name too long: %d characters, maximum allowed is %d", n, limits.MaxNameLength)
	}
	return nil
}

// ValidatePoints checks count, then shape, then finiteness, then range.
// Each stage runs over the whole list before the next one starts, so the
// reported kind does not depend on where in the list violations sit.
func ValidatePoints(points []RawPoint, limits Limits) ([]Point, error) {
	limits = limits.normalized()

	if len(points) < MinPoints {
		return nil, errs.Newf(errs.TooFewPoints, "polygon must have at least %d points, got %d", MinPoints, len(points))
	}
	if len(points) > limits.MaxPointsCount {
		return nil, errs.Newf(errs.TooManyPoints, "too many points: %d, maximum allowed is %d", len(points), limits.MaxPointsCount)
	}

	for i, p := range points {
		if !p.WellFormed() {
			return nil, errs.Newf(errs.MalformedPoint, "point %d must have exactly 2 numeric coordinates [x, y]", i)
		}
	}

	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Point()
		if !out[i].IsFinite() {
			return nil, errs.Newf(errs.NonFiniteCoordinate, "point %d has a NaN or infinite coordinate", i)
		}
	}

	for i, p := range out {
		if math.Abs(p.X) > limits.MaxCoordinate || math.Abs(p.Y) > limits.MaxCoordinate {
			return nil, errs.Newf(errs.CoordinateOutOfRange, "point %d coordinate too large, maximum absolute value is %g", i, limits.MaxCoordinate)
		}
	}

	return out, nil
}
