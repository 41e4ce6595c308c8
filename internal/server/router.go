package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/yungbote/liftlog-backend/internal/handlers"
  "github.com/yungbote/liftlog-backend/internal/middleware"
)

type RouterConfig struct {
  ServiceName    string
  AllowOrigins   []string
  WorkoutHandler *handlers.WorkoutHandler
  AuthMiddleware *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  router.Use(otelgin.Middleware(cfg.ServiceName))
  router.Use(middleware.CorrelationID())

  allowOrigins := cfg.AllowOrigins
  if len(allowOrigins) == 0 {
    allowOrigins = []string{"http://localhost:3000", "http://localhost:5174"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Correlation-Id"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  api.Use(cfg.AuthMiddleware.RequireAuth())
  {
    api.POST("/workouts/ingest", cfg.WorkoutHandler.IngestWorkout)
    api.GET("/exercises/search", cfg.WorkoutHandler.SearchExercises)
  }

  return router
}
