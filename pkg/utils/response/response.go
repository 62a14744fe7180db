// Package response contains response utility functions and types
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response represents the standard API response structure
type Response struct {
	Status     string      `json:"status"`
	Data       interface{} `json:"data,omitempty"`
	ErrorType  string      `json:"error_type,omitempty"`
	Code       int         `json:"code,omitempty"`
	Message    string      `json:"message,omitempty"`
	HTTPStatus int         `json:"http_status,omitempty"`
}

// SuccessResponse sends a successful JSON response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// CreatedResponse sends a 201 JSON response
func CreatedResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// ErrorResponse sends an error JSON response
func ErrorResponse(c echo.Context, e *APIError) error {
	return c.JSON(e.HTTPStatus, Response{
		Status:     "error",
		ErrorType:  e.ErrorType,
		Code:       e.Code,
		Message:    e.Message,
		HTTPStatus: e.HTTPStatus,
	})
}
