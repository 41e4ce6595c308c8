package types

import "github.com/google/uuid"

// ParsedWorkout is the intermediate shape shared by the structured-input
// builder and the constrained parser. Weights are still in the request's
// unit; normalization to kilograms happens afterwards.
type ParsedWorkout struct {
  IsWorkoutRelated bool              `json:"isWorkoutRelated"`
  Notes            string            `json:"notes"`
  Type             string            `json:"type"`
  Exercises        []ParsedExercise  `json:"exercises"`
}

type ParsedExercise struct {
  Name       string      `json:"name"`
  OrderIndex int         `json:"order_index"`
  Notes      string      `json:"notes"`
  Sets       []ParsedSet `json:"sets"`
}

type ParsedSet struct {
  SetNumber int       `json:"set_number"`
  Reps      *float64  `json:"reps"`
  Weight    *float64  `json:"weight"`
  RPE       *float64  `json:"rpe"`
  Notes     string    `json:"notes"`
  IsWarmup  bool      `json:"is_warmup"`
}

// NormalizedWorkout mirrors ParsedWorkout with weights guaranteed to be in
// kilograms and reps either a finite integer >= 1 or absent.
type NormalizedWorkout struct {
  Title     string                `json:"title,omitempty"`
  Notes     string                `json:"notes"`
  Type      string                `json:"type"`
  Exercises []NormalizedExercise  `json:"exercises"`
}

type NormalizedExercise struct {
  Name       string          `json:"name"`
  OrderIndex int             `json:"order_index"`
  Notes      string          `json:"notes"`
  HasRepGaps bool            `json:"hasRepGaps"`
  Sets       []NormalizedSet `json:"sets"`
}

type NormalizedSet struct {
  SetNumber int       `json:"set_number"`
  Reps      *int      `json:"reps"`
  WeightKg  *float64  `json:"weight_kg"`
  RPE       *float64  `json:"rpe"`
  Notes     string    `json:"notes"`
  IsWarmup  bool      `json:"is_warmup"`
}

// ExerciseResolution maps one distinct raw exercise name to its canonical row.
type ExerciseResolution struct {
  ExerciseID   uuid.UUID `json:"exerciseId"`
  ExerciseName string    `json:"exerciseName"`
  WasCreated   bool      `json:"wasCreated"`
}

type WorkoutMetrics struct {
  TotalExercises   int `json:"totalExercises"`
  MatchedExercises int `json:"matchedExercises"`
  CreatedExercises int `json:"createdExercises"`
  TotalSets        int `json:"totalSets"`
}
