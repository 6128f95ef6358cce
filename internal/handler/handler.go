// Package handler provides the HTTP handlers for polygon operations.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/errs"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// Create bodies are capped at the size of the largest valid polygon, and
// never below minBodyBytes. bytesPerPoint and bytesPerRune bound one
// encoded point and one escaped name character.
const (
	minBodyBytes  = 8 << 20
	bytesPerPoint = 64
	bytesPerRune  = 12
)

// bodyLimit returns the create body cap for the given limits.
func bodyLimit(l geometry.Limits) int64 {
	n := int64(l.MaxPointsCount)*bytesPerPoint + int64(l.MaxNameLength)*bytesPerRune + 1<<10
	return max(n, minBodyBytes)
}

// PolygonService is the set of operations the handler exposes over HTTP.
type PolygonService interface {
	Create(ctx context.Context, req *models.CreatePolygonRequest) (*models.Polygon, error)
	List(ctx context.Context) ([]models.Polygon, error)
	Get(ctx context.Context, rawID string) (*models.Polygon, error)
	Delete(ctx context.Context, rawID string) error
	Ping(ctx context.Context) error
	Limits() geometry.Limits
}

// Handler provides HTTP handlers for polygon operations.
type Handler struct {
	svc       PolygonService
	logger    *zap.Logger
	bodyLimit int64
}

// NewHandler creates a new polygon handler.
func NewHandler(svc PolygonService, logger *zap.Logger) *Handler {
	return &Handler{
		svc:       svc,
		logger:    logger,
		bodyLimit: bodyLimit(svc.Limits()),
	}
}

// RegisterRoutes registers the handler routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/polygons", h.Create)
	rg.GET("/polygons", h.List)
	rg.GET("/polygons/:id", h.GetByID)
	rg.DELETE("/polygons/:id", h.Delete)
}

// Create handles the creation of a new polygon.
// @Summary Create polygon
// @Description Validate and store a new polygon
// @Tags polygons
// @Accept json
// @Produce json
// @Param polygon body models.CreatePolygonRequest true "Polygon data"
// @Success 201 {object} models.Polygon
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/polygons [post]
func (h *Handler) Create(c *gin.Context) {
	req, err := decodeCreateRequest(c, h.bodyLimit)
	if err != nil {
		h.logger.Warn("Invalid create request", zap.Error(err))
		h.writeError(c, err)
		return
	}

	polygon, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, polygon)
}

// List handles retrieving all polygons.
// @Summary List polygons
// @Description Retrieve all polygons in creation order
// @Tags polygons
// @Produce json
// @Success 200 {array} models.Polygon
// @Failure 500 {object} models.ErrorResponse
// @Router /api/polygons [get]
func (h *Handler) List(c *gin.Context) {
	polygons, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if polygons == nil {
		polygons = []models.Polygon{}
	}

	c.JSON(http.StatusOK, polygons)
}

// GetByID handles retrieving a single polygon by ID.
// @Summary Get polygon by ID
// @Description Retrieve a specific polygon by its ID
// @Tags polygons
// @Produce json
// @Param id path int true "Polygon ID"
// @Success 200 {object} models.Polygon
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/polygons/{id} [get]
func (h *Handler) GetByID(c *gin.Context) {
	polygon, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, polygon)
}

// Delete handles deleting a polygon.
// @Summary Delete polygon
// @Description Delete a polygon by ID
// @Tags polygons
// @Produce json
// @Param id path int true "Polygon ID"
// @Success 200 {object} models.DeleteResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/polygons/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	rawID := c.Param("id")

	if err := h.svc.Delete(c.Request.Context(), rawID); err != nil {
		h.writeError(c, err)
		return
	}

	// The service only succeeds for a well-formed ID.
	id, _ := strconv.ParseInt(rawID, 10, 64)
	c.JSON(http.StatusOK, models.DeleteResponse{
		Message: "Polygon deleted successfully",
		ID:      id,
	})
}

// decodeCreateRequest reads the body and decodes it. Bare NaN and Infinity
// tokens are quoted first so they reach validation instead of failing the
// JSON decoder. A missing or null points array is a malformed request, while
// an empty one is left to validation.
func decodeCreateRequest(c *gin.Context, limit int64) (*models.CreatePolygonRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errs.New(errs.InvalidRequest, "request body too large")
		}
		return nil, errs.New(errs.InvalidRequest, "failed to read request body")
	}
	if len(body) == 0 {
		return nil, errs.New(errs.InvalidRequest, "request body is required")
	}

	var req models.CreatePolygonRequest
	if err := json.Unmarshal(geometry.SanitizeNonFinite(body), &req); err != nil {
		return nil, errs.Newf(errs.InvalidRequest, "invalid JSON body: %v", err)
	}
	if req.Points == nil {
		return nil, errs.New(errs.InvalidRequest, "points is required")
	}
	return &req, nil
}

// writeError renders err as an error body. Internal failures are logged and
// reported with a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := errs.Status(kind)

	message := "internal server error"
	var e *errs.Error
	if status < http.StatusInternalServerError && errors.As(err, &e) {
		message = e.Message
	} else {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err),
		)
	}

	c.JSON(status, models.ErrorResponse{
		Error:   string(kind),
		Message: message,
	})
}
