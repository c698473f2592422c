package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/auth"
	"github.com/suteetoe/schemadb/pkg/jwtutil"
	"github.com/suteetoe/schemadb/pkg/logger"
	"github.com/suteetoe/schemadb/pkg/metrics"
)

// UserKey is the echo.Context key holding the *jwtutil.UserClaims of an authorized request
const UserKey = "user"

// AuthMiddleware rejects requests without a valid bearer token before any handler runs
func AuthMiddleware(gate *auth.Gate, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			claims, err := gate.Authorize(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				log.Warn("Unauthorized request", zap.String("path", c.Path()), zap.Error(err))
				m.RecordAuthAttempt("request", false)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}

			c.Set(UserKey, claims)
			logger.Attach(c, zap.String("username", claims.Username))
			return next(c)
		}
	}
}

// UserFromContext returns the claims stored by AuthMiddleware
func UserFromContext(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get(UserKey).(*jwtutil.UserClaims)
	return claims, ok
}
