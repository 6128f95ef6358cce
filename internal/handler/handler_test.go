package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/errs"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// MockService implements PolygonService for testing
type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, req *models.CreatePolygonRequest) (*models.Polygon, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Polygon), args.Error(1)
}

func (m *MockService) List(ctx context.Context) ([]models.Polygon, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Polygon), args.Error(1)
}

func (m *MockService) Get(ctx context.Context, rawID string) (*models.Polygon, error) {
	args := m.Called(ctx, rawID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Polygon), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, rawID string) error {
	return m.Called(ctx, rawID).Error(0)
}

func (m *MockService) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockService) Limits() geometry.Limits {
	return geometry.DefaultLimits()
}

func setupTestHandler() (*Handler, *MockService, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	mockSvc := new(MockService)
	logger := zap.NewNop()

	handler := NewHandler(mockSvc, logger)

	engine := gin.New()
	engine.Use(RequestID())
	rg := engine.Group("/api")
	handler.RegisterRoutes(rg)

	return handler, mockSvc, engine
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreate_Success(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	expected := &models.Polygon{
		ID:     1,
		Name:   "P1",
		Points: []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
	}

	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(req *models.CreatePolygonRequest) bool {
		return req.Name == "P1" && len(req.Points) == 4 && req.Points[2].Point() == geometry.Point{X: 10, Y: 10}
	})).Return(expected, nil)

	body := `{"name": "P1", "points": [[0,0],[10,0],[10,10],[0,10]]}`
	req := httptest.NewRequest(http.MethodPost, "/api/polygons", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"name":"P1","points":[[0,0],[10,0],[10,10],[0,10]]}`, w.Body.String())

	mockSvc.AssertExpectations(t)
}

func TestCreate_NonFiniteTokensReachService(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(req *models.CreatePolygonRequest) bool {
		return len(req.Points) == 3 && req.Points[0].WellFormed() && !req.Points[0].Point().IsFinite()
	})).Return(nil, errs.New(errs.NonFiniteCoordinate, "point 0 has a non-finite coordinate"))

	body := `{"name": "P3", "points": [[NaN,0],[1,0],[2,2]]}`
	req := httptest.NewRequest(http.MethodPost, "/api/polygons", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NonFiniteCoordinate", decodeError(t, w).Error)
	mockSvc.AssertExpectations(t)
}

func TestCreate_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not json", "polygon please"},
		{"truncated", `{"name": "P1", "points": [[0,0]`},
		{"points not a list", `{"name": "P1", "points": "square"}`},
		{"name not a string", `{"name": 7, "points": []}`},
		{"missing points", `{"name": "P1"}`},
		{"null points", `{"name": "P1", "points": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mockSvc, engine := setupTestHandler()

			req := httptest.NewRequest(http.MethodPost, "/api/polygons", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			engine.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "InvalidRequest", decodeError(t, w).Error)
			mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreate_BodyTooLarge(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	body := `{"name": "P1", "points": [` + strings.Repeat(" ", minBodyBytes) + `]}`
	req := httptest.NewRequest(http.MethodPost, "/api/polygons", strings.NewReader(body))
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "InvalidRequest", resp.Error)
	assert.Equal(t, "request body too large", resp.Message)
	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, int64(minBodyBytes), bodyLimit(geometry.Limits{}))
	assert.Equal(t, int64(minBodyBytes), bodyLimit(geometry.DefaultLimits()))

	raised := geometry.DefaultLimits()
	raised.MaxPointsCount = 500_000
	assert.Greater(t, bodyLimit(raised), int64(500_000*len(`[-1000000.123,-1000000.123],`)))
}

func TestCreate_ValidationError(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	mockSvc.On("Create", mock.Anything, mock.Anything).
		Return(nil, errs.New(errs.TooFewPoints, "a polygon needs at least 3 points, got 2"))

	body := `{"name": "P2", "points": [[0,0],[1,0]]}`
	req := httptest.NewRequest(http.MethodPost, "/api/polygons", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "TooFewPoints", resp.Error)
	assert.Contains(t, resp.Message, "at least 3")
}

func TestCreate_InternalErrorHidesDetail(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	mockSvc.On("Create", mock.Anything, mock.Anything).
		Return(nil, errors.New("failed to create polygon: database is locked"))

	body := `{"name": "P1", "points": [[0,0],[1,0],[1,1]]}`
	req := httptest.NewRequest(http.MethodPost, "/api/polygons", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Internal", resp.Error)
	assert.NotContains(t, resp.Message, "locked")
}

func TestList_Success(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	polygons := []models.Polygon{
		{ID: 1, Name: "P1", Points: []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
		{ID: 2, Name: "P2", Points: []geometry.Point{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 6, Y: 6}}},
	}
	mockSvc.On("List", mock.Anything).Return(polygons, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/polygons", nil)
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []models.Polygon
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, polygons, response)

	mockSvc.AssertExpectations(t)
}

func TestList_EmptyIsArray(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	mockSvc.On("List", mock.Anything).Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/polygons", nil)
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetByID_NotFound(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	mockSvc.On("Get", mock.Anything, "42").Return(nil, errs.New(errs.NotFound, "polygon 42 not found"))

	req := httptest.NewRequest(http.MethodGet, "/api/polygons/42", nil)
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", decodeError(t, w).Error)
	mockSvc.AssertExpectations(t)
}

func TestDelete_Success(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()

	mockSvc.On("Delete", mock.Anything, "3").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/polygons/3", nil)
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Polygon deleted successfully","id":3}`, w.Body.String())
	mockSvc.AssertExpectations(t)
}

func TestDelete_Errors(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		err      error
		status   int
		expected string
	}{
		{"not found", "999", errs.New(errs.NotFound, "polygon 999 not found"), http.StatusNotFound, "NotFound"},
		{"bad id", "abc", errs.New(errs.InvalidIdFormat, `polygon id "abc" is not a positive integer`), http.StatusBadRequest, "InvalidIdFormat"},
		{"storage", "1", errors.New("connection reset"), http.StatusInternalServerError, "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mockSvc, engine := setupTestHandler()
			mockSvc.On("Delete", mock.Anything, tt.id).Return(tt.err)

			req := httptest.NewRequest(http.MethodDelete, "/api/polygons/"+tt.id, nil)
			w := httptest.NewRecorder()

			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.expected, decodeError(t, w).Error)
		})
	}
}

func TestRequestID(t *testing.T) {
	_, mockSvc, engine := setupTestHandler()
	mockSvc.On("List", mock.Anything).Return([]models.Polygon{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/polygons", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/polygons", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORS_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(CORS())
	engine.GET("/api/polygons", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/polygons", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		db       Pinger
		expected string
	}{
		{"gateway has no database", nil, `{"status":"healthy","role":"gateway","service":"polygon-manager"}`},
		{"database up", pingerFunc(func(context.Context) error { return nil }), `{"status":"healthy","role":"gateway","service":"polygon-manager","database":"up"}`},
		{"database down", pingerFunc(func(context.Context) error { return errors.New("gone") }), `{"status":"healthy","role":"gateway","service":"polygon-manager","database":"down"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/health", Health("gateway", tt.db))

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.expected, w.Body.String())
		})
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
