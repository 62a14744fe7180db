// Package handlers contains the handlers for the API
package handlers

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/profileapi/internal/config"
	"github.com/nsvirk/profileapi/pkg/utils/response"
)

// StatusResponseData is the response data for the status endpoint
type StatusResponseData struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// IndexHandler serves the unauthenticated informational routes
type IndexHandler struct {
	cfg *config.Config
	now func() time.Time
}

// NewIndexHandler creates a new IndexHandler
func NewIndexHandler(cfg *config.Config) *IndexHandler {
	return &IndexHandler{cfg: cfg, now: time.Now}
}

// Index returns the API name and version
func (h *IndexHandler) Index(c echo.Context) error {
	return response.SuccessResponse(c, fmt.Sprintf("%s %s", h.cfg.APIName, h.cfg.APIVersion))
}

// Status reports that the server is up
func (h *IndexHandler) Status(c echo.Context) error {
	return response.SuccessResponse(c, StatusResponseData{
		Status:    "Active",
		Timestamp: h.now().Format("2006-01-02 15:04:05"),
	})
}

// Terms serves the terms of use document
func (h *IndexHandler) Terms(c echo.Context) error {
	if _, err := os.Stat(h.cfg.TermsFile); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Terms not available")
	}
	return c.File(h.cfg.TermsFile)
}
