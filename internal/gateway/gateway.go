// Package gateway provides the API gateway that routes requests to handlers.
package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/config"
	"github.com/polygon-manager/backend/internal/errs"
	"github.com/polygon-manager/backend/internal/models"
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Content-Length":    true,
}

// Gateway provides the API gateway functionality.
type Gateway struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpClient *http.Client
}

// NewGateway creates a new API gateway. The client timeout leaves room for
// the configured operation delay.
func NewGateway(cfg *config.Config, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30*time.Second + cfg.OperationDelay,
		},
	}
}

// RegisterRoutes registers the gateway routes on the given router group.
func (g *Gateway) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Any("/polygons", g.proxyToHandler)
	rg.Any("/polygons/*path", g.proxyToHandler)
}

// proxyToHandler forwards requests to the handler service.
func (g *Gateway) proxyToHandler(c *gin.Context) {
	targetURL, err := url.Parse(g.cfg.HandlerURL)
	if err != nil || targetURL.Host == "" {
		g.logger.Error("Invalid handler URL", zap.String("handler_url", g.cfg.HandlerURL), zap.Error(err))
		g.fail(c, http.StatusInternalServerError, "invalid handler URL configuration")
		return
	}

	// The request path already starts with the route prefix.
	targetURL.Path = strings.TrimSuffix(targetURL.Path, "/") + c.Request.URL.Path
	targetURL.RawQuery = c.Request.URL.RawQuery

	g.logger.Debug("Proxying request",
		zap.String("method", c.Request.Method),
		zap.String("target", targetURL.String()),
	)

	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, err = io.ReadAll(c.Request.Body)
		if err != nil {
			g.logger.Error("Failed to read request body", zap.Error(err))
			g.fail(c, http.StatusInternalServerError, "failed to read request body")
			return
		}
	}

	proxyReq, err := http.NewRequestWithContext(
		c.Request.Context(),
		c.Request.Method,
		targetURL.String(),
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		g.logger.Error("Failed to create proxy request", zap.Error(err))
		g.fail(c, http.StatusInternalServerError, "failed to create proxy request")
		return
	}

	copyHeaders(proxyReq.Header, c.Request.Header)
	if len(bodyBytes) > 0 && proxyReq.Header.Get("Content-Type") == "" {
		proxyReq.Header.Set("Content-Type", "application/json")
	}
	proxyReq.Header.Set("X-Forwarded-For", c.ClientIP())

	resp, err := g.httpClient.Do(proxyReq)
	if err != nil {
		g.logger.Error("Failed to proxy request", zap.Error(err))

		if errors.Is(err, syscall.ECONNREFUSED) {
			g.fail(c, http.StatusServiceUnavailable, "handler service is not available")
			return
		}
		g.fail(c, http.StatusBadGateway, "failed to reach handler service")
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Error("Failed to read response body", zap.Error(err))
		g.fail(c, http.StatusBadGateway, "failed to read response")
		return
	}

	for key, values := range resp.Header {
		if hopHeaders[key] {
			continue
		}
		// Upstream values replace those set by local middleware.
		c.Writer.Header().Del(key)
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}

	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
}

func (g *Gateway) fail(c *gin.Context, status int, message string) {
	c.JSON(status, models.ErrorResponse{
		Error:   string(errs.Internal),
		Message: message,
	})
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopHeaders[key] {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
