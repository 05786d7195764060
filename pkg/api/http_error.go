package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// Messages returned to clients.
const (
	msgMissingEndpoints = "Missing origin or destination"
	msgInvalidAddress   = "Invalid address"
	msgNoRoute          = "No route found"
	msgTimeout          = "Request timed out"
	msgCanceled         = "Request canceled"
	msgGeocoderDown     = "Geocoding service unavailable"
	msgInternal         = "Internal server error"
)

// statusClientClosedRequest reports a request abandoned by the client.
const statusClientClosedRequest = 499

// HTTPError captures the metadata required to serialize an error response.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError builds an HTTPError.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// classify maps planner and provider errors onto responses.
func classify(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewHTTPError(http.StatusGatewayTimeout, "timeout", msgTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewHTTPError(statusClientClosedRequest, "canceled", msgCanceled, err)
	case errors.Is(err, provider.ErrGeocoding):
		if provider.IsInvalidAddress(err) {
			return NewHTTPError(http.StatusBadRequest, "invalid_address", msgInvalidAddress, err)
		}
		if core.IsRetryable(err) {
			return NewHTTPError(http.StatusServiceUnavailable, "geocoder_unavailable", msgGeocoderDown, err)
		}
		return NewHTTPError(http.StatusBadGateway, "geocoder_failed", msgGeocoderDown, err)
	case errors.Is(err, trip.ErrNoFeasibleRoute), errors.Is(err, trip.ErrModeUnavailable):
		return NewHTTPError(http.StatusNotFound, "no_route", msgNoRoute, err)
	case errors.Is(err, trip.ErrUnknownMode):
		return NewHTTPError(http.StatusBadRequest, "unknown_mode", err.Error(), err)
	}
	var coded *core.Error
	if errors.As(err, &coded) {
		switch core.ErrorCode(coded.Code) {
		case core.ErrMissingParameter, core.ErrEmptyParameter, core.ErrInvalidParameter,
			core.ErrInvalidInput, core.ErrUnknownMode:
			return NewHTTPError(http.StatusBadRequest, "invalid_request", coded.Message, err)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal_error", msgInternal, err)
}

func abortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// errorHandlingMiddleware renders the last handler error as {"error": message}.
func errorHandlingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		httpErr := classify(c.Errors.Last().Err)
		switch {
		case httpErr.Status == statusClientClosedRequest:
			logger.Debug("client went away", "path", c.Request.URL.Path)
		case httpErr.Status >= http.StatusInternalServerError:
			logger.Error("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		default:
			logger.Warn("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		}

		c.JSON(httpErr.Status, gin.H{"error": httpErr.Message})
	}
}

func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
