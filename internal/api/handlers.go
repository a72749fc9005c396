// Package api contains the HTTP handlers for the orchestrator runner
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"orchestrator-runner/internal/logging"
	"orchestrator-runner/internal/orchestrator"
)

// Version is reported by the health endpoint.
var Version = "dev"

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "orchestrator-runner",
		Version:   Version,
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, orchestrator.ErrInvalidReference), errors.Is(err, orchestrator.ErrInvalidArguments):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrJobFaulted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orchestrator.ErrJobTimedOut), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, orchestrator.ErrTransport), errors.Is(err, orchestrator.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler returns an echo.HTTPErrorHandler writing RFC 7807 responses.
func ErrorHandler(logger logging.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = logging.Nop
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := StatusFor(err)
		detail := problemDetail(err, status)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", logging.KeyMethod, c.Request().Method, logging.KeyPath, c.Path(), logging.KeyStatus, status, logging.KeyError, err)
		}

		problem := ProblemDetails{
			Type:     "about:blank",
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Instance: c.Request().URL.Path,
		}
		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		if err := c.JSON(status, problem); err != nil {
			logger.Error("failed to write problem response", logging.KeyError, err)
		}
	}
}

// problemDetail keeps causes of server side failures, which may carry
// upstream URLs and bodies, out of the response. They are logged instead.
func problemDetail(err error, status int) string {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if msg, ok := httpErr.Message.(string); ok {
			return msg
		}
	}
	if status < http.StatusInternalServerError {
		return err.Error()
	}
	var apiErr *orchestrator.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return http.StatusText(status)
}
