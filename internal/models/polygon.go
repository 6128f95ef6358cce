// Package models contains the data models for the application.
package models

import (
	"github.com/polygon-manager/backend/internal/geometry"
)

// Polygon is a stored, immutable polygon record.
type Polygon struct {
	ID     int64            `json:"id"`
	Name   string           `json:"name"`
	Points []geometry.Point `json:"points"`
}

// CreatePolygonRequest represents the request body for creating a polygon.
// Points are decoded leniently so that every rule violation is reported by
// validation rather than by the JSON decoder.
type CreatePolygonRequest struct {
	Name   string              `json:"name"`
	Points []geometry.RawPoint `json:"points"`
}

// DeleteResponse is returned after a successful delete.
type DeleteResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of the liveness probe.
type HealthResponse struct {
	Status   string `json:"status"`
	Role     string `json:"role"`
	Service  string `json:"service"`
	Database string `json:"database,omitempty"`
}
