package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/model"
	"github.com/suteetoe/schemadb/internal/service"
	"github.com/suteetoe/schemadb/pkg/logger"
)

// SchemaHandler serves the field registry endpoints under /db/schema
type SchemaHandler struct {
	registry  *service.FieldRegistry
	documents *service.DocumentService
}

// NewSchemaHandler creates a SchemaHandler
func NewSchemaHandler(registry *service.FieldRegistry, documents *service.DocumentService) *SchemaHandler {
	return &SchemaHandler{registry: registry, documents: documents}
}

// ListFields returns the active fields, optionally only those of ?schemaName=
func (h *SchemaHandler) ListFields(c echo.Context) error {
	schemaName := c.QueryParam("schemaName")

	fields, err := h.registry.ListActiveFields(c.Request().Context(), schemaName)
	if err != nil {
		return respondError(c, err)
	}
	if fields == nil {
		fields = []model.SchemaField{}
	}

	logger.FromEcho(c).Debug("Fields listed",
		zap.String("schema_name", schemaName),
		zap.Int("count", len(fields)))
	return c.JSON(http.StatusOK, fields)
}

// DefineFields stores a batch of field definitions for one schema
func (h *SchemaHandler) DefineFields(c echo.Context) error {
	log := logger.FromEcho(c)

	var defs []model.FieldDefinition
	if err := bindBody(c, &defs); err != nil {
		log.Error("Invalid field definitions", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": MessageInvalidRequest})
	}

	saved, err := h.registry.DefineFields(c.Request().Context(), defs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

// DeleteField removes a field, or hides it when ?mode=deactivate
func (h *SchemaHandler) DeleteField(c echo.Context) error {
	schemaName := c.Param("schemaName")
	id := c.Param("id")
	ctx := c.Request().Context()

	switch mode := c.QueryParam("mode"); mode {
	case "", "remove":
		if err := h.registry.RemoveField(ctx, schemaName, id); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Field removed"})
	case "deactivate":
		if err := h.registry.DeactivateField(ctx, schemaName, id); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Field deactivated"})
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "mode must be remove or deactivate"})
	}
}

// JSONSchema returns the JSON Schema document of a schema
func (h *SchemaHandler) JSONSchema(c echo.Context) error {
	doc, err := h.documents.JSONSchema(c.Request().Context(), c.Param("schemaName"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}
