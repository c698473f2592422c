// Package handler adapts the schema, document and auth operations to HTTP.
package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/pkg/logger"
)

// MessageInvalidRequest is returned when a request body cannot be decoded
const MessageInvalidRequest = "Invalid request data"

var binder = &echo.DefaultBinder{}

// bindBody decodes the request body only, path and query values never leak into it
func bindBody(c echo.Context, v any) error {
	return binder.BindBody(c, v)
}

// respondError writes err as {error: message} with the status of its kind
func respondError(c echo.Context, err error) error {
	status := apperror.StatusCode(err)
	log := logger.FromEcho(c)
	if status >= 500 {
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Warn("Request rejected", zap.Int("status", status), zap.String("reason", err.Error()))
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
