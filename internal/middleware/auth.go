package middleware

import (
  "errors"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yungbote/liftlog-backend/internal/apierr"
  "github.com/yungbote/liftlog-backend/internal/handlers"
  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/requestdata"
  "github.com/yungbote/liftlog-backend/internal/services"
)

type AuthMiddleware struct {
  log         *logger.Logger
  authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
  middlewareLogger := log.With("middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractToken(c)
    if tokenString == "" {
      handlers.RespondError(c, apierr.Unauthorized(errors.New("missing or invalid token")))
      c.Abort()
      return
    }
    ctx, err := am.authService.ContextFromToken(c.Request.Context(), tokenString)
    if err != nil {
      am.log.Debug("Token verification failed", "error", err)
      handlers.RespondError(c, apierr.Unauthorized(err))
      c.Abort()
      return
    }
    c.Request = c.Request.WithContext(ctx)
    if requestdata.UserID(ctx) == uuid.Nil {
      handlers.RespondError(c, apierr.Unauthorized(errors.New("missing user identity")))
      c.Abort()
      return
    }
    c.Next()
  }
}

func extractToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  return c.Query("token")
}
