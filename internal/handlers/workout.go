package handlers

import (
  "errors"
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/liftlog-backend/internal/apierr"
  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/repos"
  "github.com/yungbote/liftlog-backend/internal/requestdata"
  "github.com/yungbote/liftlog-backend/internal/services"
  "github.com/yungbote/liftlog-backend/internal/types"
)

type WorkoutHandler struct {
  log             *logger.Logger
  ingestion       services.WorkoutIngestionService
  exerciseRepo    repos.ExerciseRepo
  searchThreshold float64
}

func NewWorkoutHandler(log *logger.Logger, ingestion services.WorkoutIngestionService, exerciseRepo repos.ExerciseRepo, searchThreshold float64) *WorkoutHandler {
  if searchThreshold <= 0 || searchThreshold >= 1 {
    searchThreshold = 0.35
  }
  return &WorkoutHandler{
    log:             log.With("handler", "WorkoutHandler"),
    ingestion:       ingestion,
    exerciseRepo:    exerciseRepo,
    searchThreshold: searchThreshold,
  }
}

type ingestResponse struct {
  Workout        *types.NormalizedWorkout `json:"workout"`
  CreatedWorkout *types.Workout           `json:"createdWorkout,omitempty"`
  Metrics        *types.WorkoutMetrics    `json:"_metrics,omitempty"`
  CorrelationID  string                   `json:"correlationId"`
  Error          string                   `json:"error,omitempty"`
  Code           string                   `json:"code,omitempty"`
}

// POST /api/workouts/ingest
func (h *WorkoutHandler) IngestWorkout(c *gin.Context) {
  var req types.WorkoutRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, apierr.Invalid(err, nil))
    return
  }

  result, err := h.ingestion.Ingest(c.Request.Context(), &req)
  if err != nil {
    RespondError(c, apierr.FromError(err))
    return
  }

  resp := ingestResponse{
    Workout:        result.Workout,
    CreatedWorkout: result.CreatedWorkout,
    Metrics:        result.Metrics,
    CorrelationID:  requestdata.CorrelationID(c.Request.Context()),
  }
  if result.PersistErr != nil {
    // Partial success: the parse survived, the write did not.
    resp.Error = result.PersistErr.Error()
    resp.Code = result.PersistErr.Code
  }
  RespondOK(c, resp)
}

type exerciseSearchResult struct {
  ID          string  `json:"id"`
  Name        string  `json:"name"`
  MuscleGroup string  `json:"muscle_group"`
  Type        string  `json:"type"`
  Equipment   string  `json:"equipment"`
  Similarity  float64 `json:"similarity"`
}

// GET /api/exercises/search?q=bench&limit=10
func (h *WorkoutHandler) SearchExercises(c *gin.Context) {
  query := c.Query("q")
  if query == "" {
    RespondError(c, apierr.Invalid(errors.New("query parameter q is required"), nil))
    return
  }
  limit := 10
  if raw := c.Query("limit"); raw != "" {
    if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
      limit = parsed
    }
  }

  matches, err := h.exerciseRepo.SearchByName(c.Request.Context(), nil, query, h.searchThreshold, limit)
  if err != nil {
    h.log.Error("Exercise search failed", "query", query, "error", err)
    RespondError(c, apierr.New(http.StatusInternalServerError, apierr.CodeDBFailed, err))
    return
  }

  results := make([]exerciseSearchResult, 0, len(matches))
  for _, m := range matches {
    results = append(results, exerciseSearchResult{
      ID:          m.Exercise.ID.String(),
      Name:        m.Exercise.Name,
      MuscleGroup: m.Exercise.MuscleGroup,
      Type:        m.Exercise.Type,
      Equipment:   m.Exercise.Equipment,
      Similarity:  m.Similarity,
    })
  }
  RespondOK(c, gin.H{
    "results":       results,
    "correlationId": requestdata.CorrelationID(c.Request.Context()),
  })
}
