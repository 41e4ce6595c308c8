package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/liftlog-backend/internal/apierr"
  "github.com/yungbote/liftlog-backend/internal/requestdata"
)

type ErrorEnvelope struct {
  Error         string `json:"error"`
  Code          string `json:"code"`
  Details       any    `json:"details,omitempty"`
  CorrelationID string `json:"correlationId"`
}

func RespondError(c *gin.Context, err *apierr.Error) {
  status := err.Status
  if status == 0 {
    status = http.StatusInternalServerError
  }
  c.JSON(status, ErrorEnvelope{
    Error:         err.Error(),
    Code:          err.Code,
    Details:       err.Details,
    CorrelationID: requestdata.CorrelationID(c.Request.Context()),
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}
