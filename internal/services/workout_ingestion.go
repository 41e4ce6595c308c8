package services

import (
  "context"
  "errors"
  "fmt"
  "strings"

  "github.com/google/uuid"

  "github.com/yungbote/liftlog-backend/internal/apierr"
  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/repos"
  "github.com/yungbote/liftlog-backend/internal/requestdata"
  "github.com/yungbote/liftlog-backend/internal/types"
)

// IngestResult is the outcome of one ingestion. PersistErr carries the
// partial-success contract: when persistence fails after a successful
// parse, Workout is still populated and PersistErr explains what was lost.
type IngestResult struct {
  Workout        *types.NormalizedWorkout
  CreatedWorkout *types.Workout
  Metrics        *types.WorkoutMetrics
  PersistErr     *apierr.Error
}

type WorkoutIngestionService interface {
  Ingest(ctx context.Context, req *types.WorkoutRequest) (*IngestResult, error)
}

type workoutIngestionService struct {
  log         *logger.Logger
  parser      WorkoutParser
  resolver    ExerciseResolver
  workoutRepo repos.WorkoutRepo
}

func NewWorkoutIngestionService(log *logger.Logger, parser WorkoutParser, resolver ExerciseResolver, workoutRepo repos.WorkoutRepo) WorkoutIngestionService {
  return &workoutIngestionService{
    log:         log.With("service", "WorkoutIngestionService"),
    parser:      parser,
    resolver:    resolver,
    workoutRepo: workoutRepo,
  }
}

func (s *workoutIngestionService) Ingest(ctx context.Context, req *types.WorkoutRequest) (*IngestResult, error) {
  correlationID := requestdata.CorrelationID(ctx)
  log := s.log.With("correlation_id", correlationID)

  if violations := req.Validate(); len(violations) > 0 {
    log.Warn("Workout request failed validation", "violations", violations)
    return nil, apierr.Invalid(errors.New("invalid workout request"), violations)
  }

  userID := requestdata.UserID(ctx)
  if userID == uuid.Nil {
    return nil, apierr.Unauthorized(errors.New("missing authenticated user"))
  }
  if req.UserID != "" {
    claimed, err := uuid.Parse(req.UserID)
    if err != nil || claimed != userID {
      return nil, apierr.Unauthorized(errors.New("cannot act as the requested user"))
    }
  }

  unit := req.ResolvedWeightUnit()
  hasNotes := strings.TrimSpace(req.Notes) != ""

  parsed := buildFromStructured(req)
  if hasNotes {
    fromNotes, err := s.parser.Parse(ctx, req.Notes, unit)
    switch {
    case err == nil:
      if parsed == nil {
        parsed = fromNotes
      } else {
        parsed = mergeParsedWorkouts(parsed, fromNotes)
      }
    case parsed != nil && apierr.FromError(err).Code == apierr.CodeContentRefused:
      // Notes that the model judged non-workout content cannot contribute
      // exercises; keep the structured data instead of failing the request.
      log.Warn("Notes refused by parser, continuing with structured data only", "error", err)
    default:
      return nil, err
    }
  }
  if parsed == nil || len(parsed.Exercises) == 0 {
    return nil, apierr.ContentRefused(errors.New("no exercises detected"))
  }

  normalized := normalizeWorkout(parsed, unit, req.WorkoutTitle)
  if len(normalized.Exercises) == 0 {
    return nil, apierr.ContentRefused(errors.New("no exercises detected"))
  }

  result := &IngestResult{Workout: normalized}
  if !req.CreateWorkout {
    log.Info("Workout parsed without persistence", "exercises", len(normalized.Exercises))
    return result, nil
  }

  s.persist(ctx, log, userID, req, normalized, result)
  return result, nil
}

// persist writes in dependency order: session row, then resolution, then
// exercise links, then sets. Any failure after the parse stage records a
// PersistErr on the result instead of discarding the parsed workout.
func (s *workoutIngestionService) persist(ctx context.Context, log *logger.Logger, userID uuid.UUID, req *types.WorkoutRequest, normalized *types.NormalizedWorkout, result *IngestResult) {
  workout := &types.Workout{
    UserID:          userID,
    Title:           req.WorkoutTitle,
    Description:     req.Description,
    Notes:           req.Notes,
    Type:            normalized.Type,
    ImageURL:        req.ImageURL,
    DurationSeconds: req.DurationSeconds,
    PerformedAt:     req.PerformedAt,
  }
  if req.RoutineID != nil {
    if routineID, err := uuid.Parse(*req.RoutineID); err == nil {
      workout.RoutineID = &routineID
    }
  }

  workout, err := s.workoutRepo.Create(ctx, nil, workout)
  if err != nil {
    log.Error("Workout session insert failed", "error", err)
    result.PersistErr = apierr.DBFailed(fmt.Errorf("workout save failed but parse succeeded: %w", err))
    return
  }
  log.Info("Workout session created", "workout_id", workout.ID)

  names := make([]string, 0, len(normalized.Exercises))
  for _, ex := range normalized.Exercises {
    names = append(names, ex.Name)
  }
  resolutions, err := s.resolver.Resolve(ctx, names, userID)
  if err != nil {
    log.Error("Exercise resolution failed after session insert", "workout_id", workout.ID, "error", err)
    result.PersistErr = apierr.FromError(err)
    return
  }

  links := make([]*types.WorkoutExercise, 0, len(normalized.Exercises))
  for _, ex := range normalized.Exercises {
    res, ok := resolutions[NormalizeExerciseName(ex.Name)]
    if !ok {
      result.PersistErr = apierr.DBFailed(fmt.Errorf("no resolution for exercise %q", ex.Name))
      return
    }
    links = append(links, &types.WorkoutExercise{
      WorkoutID:  workout.ID,
      ExerciseID: res.ExerciseID,
      OrderIndex: ex.OrderIndex,
      Notes:      ex.Notes,
    })
  }
  links, err = s.workoutRepo.CreateExercises(ctx, nil, links)
  if err != nil {
    log.Error("Workout exercise insert failed", "workout_id", workout.ID, "error", err)
    result.PersistErr = apierr.DBFailed(fmt.Errorf("workout saved partially, parse succeeded: %w", err))
    return
  }

  var sets []*types.WorkoutSet
  for i, ex := range normalized.Exercises {
    for _, set := range ex.Sets {
      sets = append(sets, &types.WorkoutSet{
        WorkoutExerciseID: links[i].ID,
        SetNumber:         set.SetNumber,
        Reps:              set.Reps,
        WeightKg:          set.WeightKg,
        RPE:               set.RPE,
        Notes:             set.Notes,
        IsWarmup:          set.IsWarmup,
      })
    }
  }
  if _, err := s.workoutRepo.CreateSets(ctx, nil, sets); err != nil {
    log.Error("Workout set insert failed", "workout_id", workout.ID, "error", err)
    result.PersistErr = apierr.DBFailed(fmt.Errorf("workout saved partially, parse succeeded: %w", err))
    return
  }

  metrics := &types.WorkoutMetrics{
    TotalExercises: len(normalized.Exercises),
    TotalSets:      len(sets),
  }
  for _, res := range resolutions {
    if res.WasCreated {
      metrics.CreatedExercises++
    } else {
      metrics.MatchedExercises++
    }
  }
  result.Metrics = metrics

  saved, err := s.workoutRepo.GetWithDetails(ctx, nil, workout.ID)
  if err != nil {
    log.Warn("Workout re-read failed after persist", "workout_id", workout.ID, "error", err)
    result.CreatedWorkout = workout
  } else if saved != nil {
    result.CreatedWorkout = saved
  }
  log.Info("Workout persisted",
    "workout_id", workout.ID,
    "exercises", metrics.TotalExercises,
    "sets", metrics.TotalSets,
    "created_exercises", metrics.CreatedExercises,
  )
}

// buildFromStructured turns structured client input into a ParsedWorkout,
// dropping sets where both weight and reps are empty. Entries whose
// normalized names repeat are folded into the first occurrence, with set
// numbering continued. Returns nil when no exercise has a usable set.
func buildFromStructured(req *types.WorkoutRequest) *types.ParsedWorkout {
  if len(req.StructuredData) == 0 {
    return nil
  }

  parsed := &types.ParsedWorkout{IsWorkoutRelated: true}
  seen := map[string]int{}
  for _, input := range req.StructuredData {
    if strings.TrimSpace(input.Name) == "" {
      continue
    }
    exercise := types.ParsedExercise{
      Name:  strings.Join(strings.Fields(input.Name), " "),
      Notes: input.Notes,
    }
    for _, set := range input.Sets {
      reps := CoerceNumber(set.Reps)
      if reps != nil && *reps < 1 {
        reps = nil
      }
      weight := CoerceNumber(set.Weight)
      if weight != nil && *weight == 0 {
        // An explicit zero from the picker means the field was left empty.
        weight = nil
      }
      if reps == nil && weight == nil {
        continue
      }
      exercise.Sets = append(exercise.Sets, types.ParsedSet{
        SetNumber: len(exercise.Sets) + 1,
        Reps:      reps,
        Weight:    weight,
        RPE:       CoerceNumber(set.RPE),
        Notes:     set.Notes,
        IsWarmup:  set.IsWarmup,
      })
    }
    if len(exercise.Sets) == 0 {
      continue
    }
    normalized := NormalizeExerciseName(exercise.Name)
    if idx, ok := seen[normalized]; ok {
      prior := &parsed.Exercises[idx]
      for _, set := range exercise.Sets {
        set.SetNumber = len(prior.Sets) + 1
        prior.Sets = append(prior.Sets, set)
      }
      continue
    }
    seen[normalized] = len(parsed.Exercises)
    exercise.OrderIndex = len(parsed.Exercises)
    parsed.Exercises = append(parsed.Exercises, exercise)
  }

  if len(parsed.Exercises) == 0 {
    return nil
  }
  return parsed
}

// mergeParsedWorkouts reconciles the structured parse with the notes parse.
// Structured exercises are authoritative; notes-derived exercises whose
// normalized names are new are appended and re-indexed after them. The
// merged result never holds two exercises with the same normalized name:
// a structured repeat folds its sets into the earlier entry.
func mergeParsedWorkouts(structured, fromNotes *types.ParsedWorkout) *types.ParsedWorkout {
  merged := &types.ParsedWorkout{
    IsWorkoutRelated: true,
    Notes:            structured.Notes,
    Type:             structured.Type,
  }
  if merged.Notes == "" {
    merged.Notes = fromNotes.Notes
  }
  if merged.Type == "" {
    merged.Type = fromNotes.Type
  }

  seen := map[string]int{}
  for _, ex := range structured.Exercises {
    normalized := NormalizeExerciseName(ex.Name)
    if idx, ok := seen[normalized]; ok {
      prior := &merged.Exercises[idx]
      for _, set := range ex.Sets {
        set.SetNumber = len(prior.Sets) + 1
        prior.Sets = append(prior.Sets, set)
      }
      continue
    }
    seen[normalized] = len(merged.Exercises)
    ex.OrderIndex = len(merged.Exercises)
    merged.Exercises = append(merged.Exercises, ex)
  }
  for _, ex := range fromNotes.Exercises {
    normalized := NormalizeExerciseName(ex.Name)
    if _, ok := seen[normalized]; ok {
      continue
    }
    seen[normalized] = len(merged.Exercises)
    ex.OrderIndex = len(merged.Exercises)
    merged.Exercises = append(merged.Exercises, ex)
  }
  return merged
}

// normalizeWorkout converts a ParsedWorkout (weights in the request unit)
// into a NormalizedWorkout: weights in kilograms, reps integral and >= 1 or
// absent, sets with neither reps nor weight dropped, and exercises left
// without sets dropped with contiguous re-indexing.
func normalizeWorkout(parsed *types.ParsedWorkout, unit string, title string) *types.NormalizedWorkout {
  normalized := &types.NormalizedWorkout{
    Title: title,
    Notes: parsed.Notes,
    Type:  parsed.Type,
  }

  for _, ex := range parsed.Exercises {
    outEx := types.NormalizedExercise{
      Name:  ex.Name,
      Notes: ex.Notes,
    }
    for _, set := range ex.Sets {
      reps := CoerceReps(set.Reps)
      var weightKg *float64
      if w := CoerceNumber(set.Weight); w != nil {
        converted := Round2(ToKg(*w, unit))
        weightKg = &converted
      }
      if reps == nil && weightKg == nil {
        continue
      }
      if reps == nil {
        outEx.HasRepGaps = true
      }
      outEx.Sets = append(outEx.Sets, types.NormalizedSet{
        SetNumber: len(outEx.Sets) + 1,
        Reps:      reps,
        WeightKg:  weightKg,
        RPE:       CoerceNumber(set.RPE),
        Notes:     set.Notes,
        IsWarmup:  set.IsWarmup,
      })
    }
    if len(outEx.Sets) == 0 {
      continue
    }
    outEx.OrderIndex = len(normalized.Exercises)
    normalized.Exercises = append(normalized.Exercises, outEx)
  }
  return normalized
}
