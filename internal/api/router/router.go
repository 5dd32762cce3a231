package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/denisAlshanov/ytgrab/internal/api/handlers"
	"github.com/denisAlshanov/ytgrab/internal/api/middleware"
	"github.com/denisAlshanov/ytgrab/internal/config"
	"github.com/denisAlshanov/ytgrab/internal/web"
)

type Router struct {
	engine *gin.Engine
	server *http.Server
	config *config.Config
}

func NewRouter(cfg *config.Config, pageHandler *handlers.PageHandler, downloadHandler *handlers.DownloadHandler, fileHandler *handlers.FileHandler, healthHandler *handlers.HealthHandler) *Router {
	// Set Gin mode
	if cfg.Server.Host == "0.0.0.0" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CorrelationIDMiddleware())

	engine.SetHTMLTemplate(web.Templates())

	health := engine.Group("/")
	{
		health.GET("/health", healthHandler.Health)
		health.GET("/ready", healthHandler.Readiness)
		health.GET("/live", healthHandler.Liveness)
	}

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	engine.GET("/", pageHandler.Index)
	engine.GET("/files/:name", fileHandler.GetFile)
	engine.HEAD("/files/:name", fileHandler.GetFile)

	api := engine.Group("/api/v1")
	{
		downloads := api.Group("/downloads")
		{
			downloads.POST("", downloadHandler.CreateDownload)                 // /api/v1/downloads
			downloads.GET("", downloadHandler.ListDownloads)                   // /api/v1/downloads
			downloads.GET("/current", downloadHandler.GetCurrentDownload)      // /api/v1/downloads/current
			downloads.GET("/:id", downloadHandler.GetDownload)                 // /api/v1/downloads/{id}
			downloads.DELETE("/:id", downloadHandler.CancelDownload)           // /api/v1/downloads/{id}
			downloads.GET("/:id/events", downloadHandler.StreamEvents)         // /api/v1/downloads/{id}/events
		}
	}

	return &Router{
		engine: engine,
		config: cfg,
		server: &http.Server{
			Addr:    cfg.Server.Addr(),
			Handler: engine,
		},
	}
}

// Start serves until Shutdown is called. It returns nil after a graceful shutdown.
func (r *Router) Start() error {
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
