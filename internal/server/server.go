// Package server assembles the echo router of the service.
package server

import (
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/auth"
	"github.com/suteetoe/schemadb/internal/handler"
	"github.com/suteetoe/schemadb/internal/middleware"
	"github.com/suteetoe/schemadb/internal/service"
	"github.com/suteetoe/schemadb/internal/store"
	"github.com/suteetoe/schemadb/internal/validation"
	"github.com/suteetoe/schemadb/pkg/logger"
	"github.com/suteetoe/schemadb/pkg/metrics"
)

// Options configures New
type Options struct {
	ServiceName string
	BasePath    string
	// StaticDir is served at / when it exists
	StaticDir string
	Backend   store.Backend
	Gate      *auth.Gate
	Metrics   *metrics.Metrics
}

// New wires the services over opts.Backend and returns the router
func New(opts Options) *echo.Echo {
	log := logger.GetLogger()
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	engine := validation.NewEngine()
	registry := service.NewFieldRegistry(opts.Backend.Fields(), engine, m)
	documents := service.NewDocumentService(registry, opts.Backend.Documents(), engine, m)

	authHandler := handler.NewAuthHandler(opts.Gate, m)
	schemaHandler := handler.NewSchemaHandler(registry, documents)
	documentHandler := handler.NewDocumentHandler(documents)
	healthHandler := handler.NewHealthHandler(opts.ServiceName, opts.Backend)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = JSONSerializer{}

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(m.Middleware())

	// Public routes - no authentication required
	e.GET("/health", healthHandler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	api := e.Group(opts.BasePath)

	authRoutes := api.Group("/auth")
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.GET("/verify-token", authHandler.VerifyToken)

	// Every /db route requires a valid token
	db := api.Group("/db", middleware.AuthMiddleware(opts.Gate, m))

	db.GET("/schema", schemaHandler.ListFields)
	db.POST("/schema", schemaHandler.DefineFields)
	db.GET("/schema/:schemaName/jsonschema", schemaHandler.JSONSchema)
	db.DELETE("/schema/:schemaName/:id", schemaHandler.DeleteField)

	db.POST("", documentHandler.CreateDocument)
	db.GET("/:schemaName", documentHandler.ListDocuments)
	db.PATCH("/:schemaName/:id", documentHandler.UpdateDocument)
	db.DELETE("/:schemaName/:id", documentHandler.DeleteDocument)

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			e.Static("/", opts.StaticDir)
			log.Info("Serving static files", zap.String("dir", opts.StaticDir))
		}
	}

	return e
}
