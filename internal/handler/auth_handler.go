package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/auth"
	"github.com/suteetoe/schemadb/pkg/logger"
	"github.com/suteetoe/schemadb/pkg/metrics"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandler serves the login and token check endpoints
type AuthHandler struct {
	gate    *auth.Gate
	metrics *metrics.Metrics
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(gate *auth.Gate, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{gate: gate, metrics: m}
}

// Login exchanges the administrator credential for a bearer token
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req LoginRequest
	if err := bindBody(c, &req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		h.metrics.RecordAuthAttempt("login", false)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": MessageInvalidRequest})
	}

	token, err := h.gate.Authenticate(req.Username, req.Password)
	if err != nil {
		log.Warn("Login failed", zap.String("username", req.Username))
		h.metrics.RecordAuthAttempt("login", false)
		return respondError(c, err)
	}

	h.metrics.RecordAuthAttempt("login", true)
	log.Info("User logged in", zap.String("username", req.Username))
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// VerifyToken reports whether the bearer token of the request is still valid
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	log := logger.FromEcho(c)

	claims, err := h.gate.Authorize(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		log.Debug("Token verification failed", zap.Error(err))
		h.metrics.RecordAuthAttempt("verify", false)
		return c.JSON(http.StatusUnauthorized, echo.Map{"valid": false, "error": "Invalid token"})
	}

	h.metrics.RecordAuthAttempt("verify", true)
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "username": claims.Username})
}
