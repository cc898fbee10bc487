package app

import (
	"context"
	"net/http"
	"time"

	"github.com/sheffmachine/todo-api/docs"
	"github.com/sheffmachine/todo-api/internal/config"
	"github.com/sheffmachine/todo-api/internal/dto"
	"github.com/sheffmachine/todo-api/internal/handlers"
	"github.com/sheffmachine/todo-api/internal/repo"
	"github.com/sheffmachine/todo-api/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

const apiBasePath = "/api/v1"

// Pinger is a dependency the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps are the collaborators the HTTP surface is built from.
type RouterDeps struct {
	Config config.Config
	Log    zerolog.Logger
	Repo   repo.TodoRepo
	// Cache is optional; nil disables list caching.
	Cache  service.ListCache
	Clock  service.Clock
	Checks map[string]Pinger
}

// NewRouter builds the gin engine with middleware and all routes registered.
func NewRouter(d RouterDeps) *gin.Engine {
	dto.RegisterValidators()

	r := gin.New()
	r.Use(
		handlers.RequestID(),
		handlers.RequestLogger(d.Log),
		handlers.Recovery(d.Log),
		cors.New(cors.Config{
			AllowOrigins:  d.Config.CORS.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", handlers.RequestIDHeader},
			ExposeHeaders: []string{"Content-Length", "Content-Type", handlers.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
		handlers.ErrorHandler(d.Log),
	)
	r.NoRoute(handlers.NoRoute)

	Setup(r, d)
	return r
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, d RouterDeps) {
	docs.SwaggerInfo.Version = d.Config.App.Version
	docs.SwaggerInfo.BasePath = apiBasePath

	r.GET("/", rootHandler(d.Config))
	r.GET("/health", healthHandler(d.Config, d.Checks))
	r.GET("/version", versionHandler(d.Config))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))

	api := r.Group(apiBasePath)

	todoSvc := service.NewTodoService(d.Repo, d.Cache, d.Clock, d.Log)
	todoHandler := handlers.NewTodoHandler(todoSvc, d.Clock)
	registerTodoRoutes(api, todoHandler)
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Todo API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"openapi": "/swagger-doc.json",
			"health":  "/health",
			"api":     apiBasePath,
		})
	}
}

func healthHandler(cfg config.Config, checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		ok := true
		results := gin.H{}
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				ok = false
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ok": ok, "env": cfg.App.Env, "checks": results})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

// Static segments are registered before :id so they are not parsed as ids.
func registerTodoRoutes(api *gin.RouterGroup, h *handlers.TodoHandler) {
	api.POST("/todos", h.Create)
	api.GET("/todos", h.List)
	api.GET("/todos/completed", h.Completed)
	api.GET("/todos/pending", h.Pending)
	api.GET("/todos/search", h.Search)
	api.GET("/todos/:id", h.GetByID)
	api.PUT("/todos/:id", h.Update)
	api.PATCH("/todos/:id/toggle", h.Toggle)
	api.DELETE("/todos/:id", h.Delete)
}
