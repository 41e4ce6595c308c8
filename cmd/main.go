package main

import (
  "context"
  "fmt"
  "os"
  "strings"
  "time"

  "github.com/redis/go-redis/v9"

  "github.com/yungbote/liftlog-backend/internal/db"
  "github.com/yungbote/liftlog-backend/internal/handlers"
  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/middleware"
  "github.com/yungbote/liftlog-backend/internal/observability"
  "github.com/yungbote/liftlog-backend/internal/repos"
  "github.com/yungbote/liftlog-backend/internal/server"
  "github.com/yungbote/liftlog-backend/internal/services"
  "github.com/yungbote/liftlog-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  primaryModel := utils.GetEnv("PARSER_PRIMARY_MODEL", "", log)
  fallbackModel := utils.GetEnv("PARSER_FALLBACK_MODEL", "gpt-4o-mini", log)
  parserTimeout := utils.GetEnvAsInt("PARSER_TIMEOUT_SECONDS", 30, log)
  resolverModel := utils.GetEnv("RESOLVER_MODEL", "", log)
  resolverMaxIterations := utils.GetEnvAsInt("RESOLVER_MAX_ITERATIONS", 20, log)
  searchThreshold := utils.GetEnvAsFloat("EXERCISE_SEARCH_THRESHOLD", 0.35, log)
  fallbackThreshold := utils.GetEnvAsFloat("EXERCISE_FALLBACK_THRESHOLD", 0.5, log)
  redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
  allowOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)

  // Tracing
  shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "liftlog-backend",
    Environment: utils.GetEnv("ENVIRONMENT", "development", nil),
    Version:     utils.GetEnv("VERSION", "dev", nil),
  })
  defer func() {
    _ = shutdownOtel(context.Background())
  }()

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Redis (optional)
  var resolutionCache services.ResolutionCache
  if redisAddr != "" {
    redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
    pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    if err := redisClient.Ping(pingCtx).Err(); err != nil {
      log.Warn("Redis unreachable, resolution cache disabled", "addr", redisAddr, "error", err)
    } else {
      resolutionCache = services.NewRedisResolutionCache(redisClient, log, 0)
    }
    cancel()
  }

  // Repos
  log.Info("Setting up Repos from main...")
  exerciseRepo := repos.NewExerciseRepo(thePG, log)
  workoutRepo := repos.NewWorkoutRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  openaiClient, err := services.NewOpenAIClient(log)
  if err != nil {
    log.Error("Could not init OpenAIClient", "error", err)
    os.Exit(1)
  }
  authService := services.NewAuthService(log, jwtSecretKey)
  workoutParser := services.NewWorkoutParser(log, openaiClient, primaryModel, fallbackModel, time.Duration(parserTimeout)*time.Second)
  exerciseResolver := services.NewExerciseResolver(log, openaiClient, exerciseRepo, resolutionCache, services.ExerciseResolverConfig{
    Model:             resolverModel,
    MaxIterations:     resolverMaxIterations,
    SearchThreshold:   searchThreshold,
    FallbackThreshold: fallbackThreshold,
  })
  ingestionService := services.NewWorkoutIngestionService(log, workoutParser, exerciseResolver, workoutRepo)

  // Handlers
  log.Info("Setting up handlers from main...")
  workoutHandler := handlers.NewWorkoutHandler(log, ingestionService, exerciseRepo, searchThreshold)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  var origins []string
  if allowOrigins != "" {
    origins = strings.Split(allowOrigins, ",")
  }
  router := server.NewRouter(server.RouterConfig{
    ServiceName:    "liftlog-backend",
    AllowOrigins:   origins,
    WorkoutHandler: workoutHandler,
    AuthMiddleware: authMiddleware,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
