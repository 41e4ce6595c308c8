package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "time"

  "github.com/yungbote/liftlog-backend/internal/apierr"
  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/requestdata"
  "github.com/yungbote/liftlog-backend/internal/types"
)

// WorkoutParser extracts exercises and sets from free-text workout notes
// via schema-constrained generation. Single shot per model: the primary
// model is tried once, then the fallback model once, under a hard timeout.
type WorkoutParser interface {
  Parse(ctx context.Context, notes string, weightUnit string) (*types.ParsedWorkout, error)
}

type workoutParser struct {
  log           *logger.Logger
  ai            OpenAIClient
  primaryModel  string
  fallbackModel string
  timeout       time.Duration
}

func NewWorkoutParser(log *logger.Logger, ai OpenAIClient, primaryModel, fallbackModel string, timeout time.Duration) WorkoutParser {
  if timeout <= 0 {
    timeout = 30 * time.Second
  }
  return &workoutParser{
    log:           log.With("service", "WorkoutParser"),
    ai:            ai,
    primaryModel:  primaryModel,
    fallbackModel: fallbackModel,
    timeout:       timeout,
  }
}

func parsedWorkoutSchema() map[string]any {
  setSchema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "set_number": map[string]any{"type": "integer"},
      "reps":       map[string]any{"type": []string{"number", "null"}},
      "weight":     map[string]any{"type": []string{"number", "null"}},
      "rpe":        map[string]any{"type": []string{"number", "null"}},
      "notes":      map[string]any{"type": "string"},
      "is_warmup":  map[string]any{"type": "boolean"},
    },
    "required":             []string{"set_number", "reps", "weight", "rpe", "notes", "is_warmup"},
    "additionalProperties": false,
  }
  exerciseSchema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "name":        map[string]any{"type": "string"},
      "order_index": map[string]any{"type": "integer"},
      "notes":       map[string]any{"type": "string"},
      "sets":        map[string]any{"type": "array", "items": setSchema},
    },
    "required":             []string{"name", "order_index", "notes", "sets"},
    "additionalProperties": false,
  }
  return map[string]any{
    "type": "object",
    "properties": map[string]any{
      "isWorkoutRelated": map[string]any{"type": "boolean"},
      "notes":            map[string]any{"type": "string"},
      "type":             map[string]any{"type": "string"},
      "exercises":        map[string]any{"type": "array", "items": exerciseSchema},
    },
    "required":             []string{"isWorkoutRelated", "notes", "type", "exercises"},
    "additionalProperties": false,
  }
}

func parserUserPrompt(notes, weightUnit string) string {
  return fmt.Sprintf(
    "Weight unit for this session: %s. Report every weight as a number in %s. "+
      "If the notes mention a weight in the other unit, convert it (1 kg = %.5f lb, so lb = kg * %.5f and kg = lb / %.5f). "+
      "Set is_warmup only when the notes explicitly say a set was a warm-up. "+
      "If the text is not about a workout, set isWorkoutRelated to false and return no exercises.\n\n"+
      "Workout notes:\n%s",
    weightUnit, weightUnit, LbPerKg, LbPerKg, LbPerKg, notes,
  )
}

const parserSystemPrompt = "You extract structured workout data from a user's freeform training notes. " +
  "Every exercise the user performed becomes one entry with its sets in the order written. " +
  "Use null for reps, weight or rpe the notes do not state. Never invent sets."

func (p *workoutParser) Parse(ctx context.Context, notes string, weightUnit string) (*types.ParsedWorkout, error) {
  ctx, cancel := context.WithTimeout(ctx, p.timeout)
  defer cancel()

  correlationID := requestdata.CorrelationID(ctx)
  log := p.log.With("correlation_id", correlationID)

  schema := parsedWorkoutSchema()
  user := parserUserPrompt(notes, weightUnit)

  obj, err := p.ai.GenerateJSON(ctx, p.primaryModel, parserSystemPrompt, user, "parsed_workout", schema)
  if err != nil {
    if errors.Is(err, ErrModelRefused) {
      log.Warn("Primary model refused workout notes", "error", err)
      return nil, apierr.ContentRefused(fmt.Errorf("this doesn't look like workout content: %w", err))
    }
    if p.fallbackModel == "" || ctx.Err() != nil {
      log.Error("Workout parse failed with no fallback", "model", p.primaryModel, "error", err)
      return nil, apierr.ParseFailed(err)
    }
    log.Warn("Primary model parse failed, trying fallback", "primary", p.primaryModel, "fallback", p.fallbackModel, "error", err)
    obj, err = p.ai.GenerateJSON(ctx, p.fallbackModel, parserSystemPrompt, user, "parsed_workout", schema)
    if err != nil {
      if errors.Is(err, ErrModelRefused) {
        return nil, apierr.ContentRefused(fmt.Errorf("this doesn't look like workout content: %w", err))
      }
      log.Error("Fallback model parse failed", "model", p.fallbackModel, "error", err)
      return nil, apierr.ParseFailed(err)
    }
  }

  parsed, err := decodeParsedWorkout(obj)
  if err != nil {
    log.Error("Parsed workout failed to decode", "error", err)
    return nil, apierr.ParseFailed(err)
  }
  if !parsed.IsWorkoutRelated {
    return nil, apierr.ContentRefused(errors.New("this doesn't look like workout content"))
  }

  log.Info("Workout notes parsed", "exercises", len(parsed.Exercises))
  return parsed, nil
}

func decodeParsedWorkout(obj map[string]any) (*types.ParsedWorkout, error) {
  raw, err := json.Marshal(obj)
  if err != nil {
    return nil, err
  }
  var parsed types.ParsedWorkout
  if err := json.Unmarshal(raw, &parsed); err != nil {
    return nil, err
  }
  // The schema constrains shape, not sequencing. Reassign indexes so they
  // are contiguous regardless of what the model produced.
  for i := range parsed.Exercises {
    parsed.Exercises[i].OrderIndex = i
    for j := range parsed.Exercises[i].Sets {
      parsed.Exercises[i].Sets[j].SetNumber = j + 1
    }
  }
  return &parsed, nil
}
