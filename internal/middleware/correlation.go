package middleware

import (
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yungbote/liftlog-backend/internal/requestdata"
)

// CorrelationID generates one correlation id per request and threads it
// through the request context and the response headers, so every log line
// the pipeline emits can be stitched back to the client-visible id.
func CorrelationID() gin.HandlerFunc {
  return func(c *gin.Context) {
    correlationID := c.GetHeader("X-Correlation-Id")
    if correlationID == "" {
      correlationID = uuid.New().String()
    }

    rd := requestdata.GetRequestData(c.Request.Context())
    if rd == nil {
      rd = &requestdata.RequestData{}
      c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
    }
    rd.CorrelationID = correlationID

    c.Header("X-Correlation-Id", correlationID)
    c.Next()
  }
}
