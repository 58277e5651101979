package common

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HTTPErrorHandler renders errors as {"detail": "..."}. Messages of 5xx errors are not exposed.
func HTTPErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := http.StatusText(code)

	var httpError *echo.HTTPError
	if errors.As(err, &httpError) {
		code = httpError.Code
		if code < http.StatusInternalServerError {
			detail = fmt.Sprint(httpError.Message)
		} else {
			detail = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		slog.Error("request failed",
			"status", code, "method", ctx.Request().Method, "uri", ctx.Request().RequestURI, "error", err)
	}

	var writeErr error
	if ctx.Request().Method == http.MethodHead {
		writeErr = ctx.NoContent(code)
	} else {
		writeErr = ctx.JSON(code, ErrorResponse{Detail: detail})
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}
