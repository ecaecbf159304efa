package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/internal/handler"
	"github.com/noah-isme/auth-session-api/internal/middleware"
	"github.com/noah-isme/auth-session-api/pkg/config"
	"github.com/noah-isme/auth-session-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/auth-session-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/auth-session-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, deps *dependencies, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.checks, logr.Named("ready"))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if deps.metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.auth, cfg.Cookie)
	blogHandler := handler.NewBlogHandler(deps.blogs)
	guard := middleware.RequireAuth(deps.auth)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/refresh", authHandler.Refresh)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", guard, authHandler.Me)

		blogs := api.Group("/blogs", guard)
		blogs.POST("", blogHandler.Create)
		blogs.GET("/:id", blogHandler.Get)
		blogs.GET("/user/:userId", blogHandler.ListByUser)
		blogs.DELETE("/:id", blogHandler.Delete)
	}

	return r
}
