package services

import (
  "context"
  "errors"
  "fmt"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"

  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/requestdata"
)

type JWTClaims struct {
  jwt.RegisteredClaims
}

// AuthService verifies bearer tokens. Account lifecycle (registration,
// refresh) lives in the identity service; this backend only checks that
// the caller can act as the user a token claims.
type AuthService interface {
  ContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
  log       *logger.Logger
  jwtSecret []byte
}

func NewAuthService(log *logger.Logger, jwtSecret string) AuthService {
  return &authService{
    log:       log.With("service", "AuthService"),
    jwtSecret: []byte(jwtSecret),
  }
}

func (as *authService) ContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
    }
    return as.jwtSecret, nil
  })
  if err != nil {
    return ctx, fmt.Errorf("invalid token: %w", err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, errors.New("invalid token claims")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, errors.New("invalid token subject")
  }

  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    rd = &requestdata.RequestData{}
    ctx = requestdata.WithRequestData(ctx, rd)
  }
  rd.TokenString = tokenString
  rd.UserID = userID
  return ctx, nil
}
