package requestdata

import (
  "context"

  "github.com/google/uuid"
)

var requestDataKey = struct{}{}

type RequestData struct {
  TokenString   string
  UserID        uuid.UUID
  CorrelationID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  val := ctx.Value(requestDataKey)
  if rd, ok := val.(*RequestData); ok {
    return rd
  }
  return nil
}

func CorrelationID(ctx context.Context) string {
  if rd := GetRequestData(ctx); rd != nil {
    return rd.CorrelationID
  }
  return ""
}

func UserID(ctx context.Context) uuid.UUID {
  if rd := GetRequestData(ctx); rd != nil {
    return rd.UserID
  }
  return uuid.Nil
}
