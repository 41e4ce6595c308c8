package types

import (
  "fmt"
  "strings"
  "time"
)

const (
  WeightUnitKg = "kg"
  WeightUnitLb = "lb"

  maxNotesLength       = 10000
  maxTitleLength       = 200
  maxDescriptionLength = 2000
  maxStructuredEntries = 50
  maxSetsPerExercise   = 100
)

// SetInput is one structured set as entered through the client UI. Reps,
// weight and RPE arrive as raw JSON values: numbers from the picker,
// strings (possibly with a decimal comma) from free-typed fields.
type SetInput struct {
  Reps     any    `json:"reps"`
  Weight   any    `json:"weight"`
  RPE      any    `json:"rpe"`
  Notes    string `json:"notes"`
  IsWarmup bool   `json:"is_warmup"`
}

type ExerciseInput struct {
  Name  string     `json:"name"`
  Notes string     `json:"notes"`
  Sets  []SetInput `json:"sets"`
}

type WorkoutRequest struct {
  Notes           string          `json:"notes"`
  WeightUnit      string          `json:"weightUnit"`
  CreateWorkout   bool            `json:"createWorkout"`
  UserID          string          `json:"userId"`
  WorkoutTitle    string          `json:"workoutTitle"`
  Description     string          `json:"description"`
  ImageURL        *string         `json:"imageUrl"`
  RoutineID       *string         `json:"routineId"`
  DurationSeconds *int            `json:"durationSeconds"`
  PerformedAt     *time.Time      `json:"performedAt"`
  StructuredData  []ExerciseInput `json:"structuredData"`
}

// Validate checks the request against the ingestion contract and returns
// every violation, not just the first one. An empty slice means valid.
func (r *WorkoutRequest) Validate() []string {
  var violations []string

  hasNotes := strings.TrimSpace(r.Notes) != ""
  hasStructured := len(r.StructuredData) > 0
  if !hasNotes && !hasStructured {
    violations = append(violations, "notes: either notes or structuredData is required")
  }
  if len(r.Notes) > maxNotesLength {
    violations = append(violations, fmt.Sprintf("notes: must be at most %d characters", maxNotesLength))
  }

  switch r.WeightUnit {
  case "", WeightUnitKg, WeightUnitLb:
  default:
    violations = append(violations, fmt.Sprintf("weightUnit: must be %q or %q", WeightUnitKg, WeightUnitLb))
  }

  if len(r.WorkoutTitle) > maxTitleLength {
    violations = append(violations, fmt.Sprintf("workoutTitle: must be at most %d characters", maxTitleLength))
  }
  if len(r.Description) > maxDescriptionLength {
    violations = append(violations, fmt.Sprintf("description: must be at most %d characters", maxDescriptionLength))
  }
  if r.DurationSeconds != nil && *r.DurationSeconds < 0 {
    violations = append(violations, "durationSeconds: must not be negative")
  }

  if len(r.StructuredData) > maxStructuredEntries {
    violations = append(violations, fmt.Sprintf("structuredData: must contain at most %d exercises", maxStructuredEntries))
  }
  for i, ex := range r.StructuredData {
    if strings.TrimSpace(ex.Name) == "" {
      violations = append(violations, fmt.Sprintf("structuredData[%d].name: is required", i))
    }
    if len(ex.Sets) > maxSetsPerExercise {
      violations = append(violations, fmt.Sprintf("structuredData[%d].sets: must contain at most %d sets", i, maxSetsPerExercise))
    }
  }

  return violations
}

// ResolvedWeightUnit returns the requested unit, defaulting to kilograms.
func (r *WorkoutRequest) ResolvedWeightUnit() string {
  if r.WeightUnit == WeightUnitLb {
    return WeightUnitLb
  }
  return WeightUnitKg
}
