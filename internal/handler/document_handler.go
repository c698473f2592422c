package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/service"
	"github.com/suteetoe/schemadb/pkg/logger"
)

// CreateDocumentRequest is the body of POST /db
type CreateDocumentRequest struct {
	SchemaName   string         `json:"schemaName"`
	CustomFields map[string]any `json:"customFields"`
}

// UpdateDocumentRequest is the body of PATCH /db/:schemaName/:id
type UpdateDocumentRequest struct {
	CustomFields map[string]any `json:"customFields"`
}

// DocumentHandler serves the document endpoints under /db
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler creates a DocumentHandler
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// CreateDocument validates and stores one document
func (h *DocumentHandler) CreateDocument(c echo.Context) error {
	var req CreateDocumentRequest
	if err := bindBody(c, &req); err != nil {
		logger.FromEcho(c).Error("Invalid document request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": MessageInvalidRequest})
	}

	id, err := h.documents.Create(c.Request().Context(), req.SchemaName, req.CustomFields)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"_id": id})
}

// ListDocuments returns every document of a schema
func (h *DocumentHandler) ListDocuments(c echo.Context) error {
	docs, err := h.documents.List(c.Request().Context(), c.Param("schemaName"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, docs)
}

// UpdateDocument merges customFields into a document, checking them against the schema when ?strict=true
func (h *DocumentHandler) UpdateDocument(c echo.Context) error {
	strict := false
	if raw := c.QueryParam("strict"); raw != "" {
		var err error
		if strict, err = strconv.ParseBool(raw); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "strict must be a boolean"})
		}
	}

	var req UpdateDocumentRequest
	if err := bindBody(c, &req); err != nil {
		logger.FromEcho(c).Error("Invalid update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": MessageInvalidRequest})
	}

	err := h.documents.Update(c.Request().Context(), c.Param("schemaName"), c.Param("id"), req.CustomFields, strict)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Document updated successfully"})
}

// DeleteDocument removes one document
func (h *DocumentHandler) DeleteDocument(c echo.Context) error {
	if err := h.documents.Delete(c.Request().Context(), c.Param("schemaName"), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Document deleted successfully"})
}
