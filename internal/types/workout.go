package types

import (
  "time"

  "github.com/google/uuid"
)

type Workout struct {
  ID              uuid.UUID           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID          uuid.UUID           `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
  Title           string              `gorm:"column:title" json:"title"`
  Description     string              `gorm:"column:description" json:"description"`
  Notes           string              `gorm:"column:notes" json:"notes"`
  Type            string              `gorm:"column:type" json:"type"`
  ImageURL        *string             `gorm:"column:image_url" json:"image_url,omitempty"`
  RoutineID       *uuid.UUID          `gorm:"type:uuid;column:routine_id" json:"routine_id,omitempty"`
  DurationSeconds *int                `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
  PerformedAt     *time.Time          `gorm:"column:performed_at" json:"performed_at,omitempty"`
  Exercises       []*WorkoutExercise  `gorm:"foreignKey:WorkoutID;references:ID" json:"exercises,omitempty"`
  CreatedAt       time.Time           `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time           `gorm:"not null;default:now()" json:"updated_at"`
}

func (Workout) TableName() string {
  return "workout"
}

type WorkoutExercise struct {
  ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  WorkoutID   uuid.UUID       `gorm:"type:uuid;not null;index;column:workout_id" json:"workout_id"`
  ExerciseID  uuid.UUID       `gorm:"type:uuid;not null;index;column:exercise_id" json:"exercise_id"`
  Exercise    *Exercise       `gorm:"foreignKey:ExerciseID;references:ID" json:"exercise,omitempty"`
  OrderIndex  int             `gorm:"not null;column:order_index" json:"order_index"`
  Notes       string          `gorm:"column:notes" json:"notes"`
  Sets        []*WorkoutSet   `gorm:"foreignKey:WorkoutExerciseID;references:ID" json:"sets,omitempty"`
  CreatedAt   time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkoutExercise) TableName() string {
  return "workout_exercise"
}

type WorkoutSet struct {
  ID                uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  WorkoutExerciseID uuid.UUID     `gorm:"type:uuid;not null;index;column:workout_exercise_id" json:"workout_exercise_id"`
  SetNumber         int           `gorm:"not null;column:set_number" json:"set_number"`
  Reps              *int          `gorm:"column:reps" json:"reps,omitempty"`
  WeightKg          *float64      `gorm:"column:weight_kg" json:"weight_kg,omitempty"`
  RPE               *float64      `gorm:"column:rpe" json:"rpe,omitempty"`
  Notes             string        `gorm:"column:notes" json:"notes"`
  IsWarmup          bool          `gorm:"not null;default:false;column:is_warmup" json:"is_warmup"`
  CreatedAt         time.Time     `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt         time.Time     `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkoutSet) TableName() string {
  return "workout_set"
}
