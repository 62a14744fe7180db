package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
)

// Error types
const (
	AuthorizationException  = "AuthorizationException"
	AuthenticationException = "AuthenticationException"
	PermissionException     = "PermissionException"
	InputException          = "InputException"
	NotFoundException       = "NotFoundException"
	ServerException         = "ServerException"
	DatabaseException       = "DatabaseException"
)

// APIError is an application error carrying its numeric code and HTTP status
type APIError struct {
	Code       int
	HTTPStatus int
	ErrorType  string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewError creates an APIError
func NewError(code, httpStatus int, errorType, message string) *APIError {
	return &APIError{Code: code, HTTPStatus: httpStatus, ErrorType: errorType, Message: message}
}

// Wrap returns a copy of e carrying err as its cause
func (e *APIError) Wrap(err error) *APIError {
	c := *e
	c.Err = err
	return &c
}

// BadRequest is a 400 InputException
func BadRequest(code int, message string) *APIError {
	return NewError(code, http.StatusBadRequest, InputException, message)
}

// Unauthorized is a 401 AuthorizationException
func Unauthorized(code int, message string) *APIError {
	return NewError(code, http.StatusUnauthorized, AuthorizationException, message)
}

// Forbidden is a 403 PermissionException
func Forbidden(code int, message string) *APIError {
	return NewError(code, http.StatusForbidden, PermissionException, message)
}

// NotFound is a 404 NotFoundException
func NotFound(code int, message string) *APIError {
	return NewError(code, http.StatusNotFound, NotFoundException, message)
}

// InternalMessage is the client facing message of every 500
const InternalMessage = "Internal server error"

// Internal is a 500 ServerException. The cause is kept for the log only.
func Internal(code int, err error) *APIError {
	return &APIError{Code: code, HTTPStatus: http.StatusInternalServerError, ErrorType: ServerException, Message: InternalMessage, Err: err}
}

// HTTPErrorHandler is the centralized Echo error responder. Every error
// returned by a handler or middleware is serialized here.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = NewError(httpErr.Code, httpErr.Code, httpErrorType(httpErr.Code), fmt.Sprint(httpErr.Message))
	default:
		apiErr = Internal(http.StatusInternalServerError, err)
	}

	fields := zaplogger.Fields{
		"code":   apiErr.Code,
		"status": apiErr.HTTPStatus,
		"method": c.Request().Method,
		"path":   c.Request().URL.Path,
	}
	if apiErr.Err != nil {
		fields["error"] = apiErr.Err.Error()
	}
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		zaplogger.Error(apiErr.Message, fields)
	} else {
		zaplogger.Debug(apiErr.Message, fields)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(apiErr.HTTPStatus)
	} else {
		err = ErrorResponse(c, apiErr)
	}
	if err != nil {
		zaplogger.Error("failed to write error response", zaplogger.Fields{"error": err})
	}
}

func httpErrorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return AuthorizationException
	case http.StatusForbidden:
		return PermissionException
	case http.StatusNotFound:
		return NotFoundException
	}
	if status >= http.StatusInternalServerError {
		return ServerException
	}
	return InputException
}
