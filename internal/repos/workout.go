package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/types"
)

type WorkoutRepo interface {
  Create(ctx context.Context, tx *gorm.DB, workout *types.Workout) (*types.Workout, error)
  CreateExercises(ctx context.Context, tx *gorm.DB, rows []*types.WorkoutExercise) ([]*types.WorkoutExercise, error)
  CreateSets(ctx context.Context, tx *gorm.DB, rows []*types.WorkoutSet) ([]*types.WorkoutSet, error)
  GetWithDetails(ctx context.Context, tx *gorm.DB, workoutID uuid.UUID) (*types.Workout, error)
}

type workoutRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewWorkoutRepo(db *gorm.DB, baseLog *logger.Logger) WorkoutRepo {
  repoLog := baseLog.With("repo", "WorkoutRepo")
  return &workoutRepo{db: db, log: repoLog}
}

func (wr *workoutRepo) Create(ctx context.Context, tx *gorm.DB, workout *types.Workout) (*types.Workout, error) {
  transaction := tx
  if transaction == nil {
    transaction = wr.db
  }

  if err := transaction.WithContext(ctx).Omit("Exercises").Create(workout).Error; err != nil {
    return nil, err
  }
  return workout, nil
}

func (wr *workoutRepo) CreateExercises(ctx context.Context, tx *gorm.DB, rows []*types.WorkoutExercise) ([]*types.WorkoutExercise, error) {
  transaction := tx
  if transaction == nil {
    transaction = wr.db
  }

  if len(rows) == 0 {
    return []*types.WorkoutExercise{}, nil
  }

  if err := transaction.WithContext(ctx).Omit("Exercise", "Sets").Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (wr *workoutRepo) CreateSets(ctx context.Context, tx *gorm.DB, rows []*types.WorkoutSet) ([]*types.WorkoutSet, error) {
  transaction := tx
  if transaction == nil {
    transaction = wr.db
  }

  if len(rows) == 0 {
    return []*types.WorkoutSet{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (wr *workoutRepo) GetWithDetails(ctx context.Context, tx *gorm.DB, workoutID uuid.UUID) (*types.Workout, error) {
  transaction := tx
  if transaction == nil {
    transaction = wr.db
  }

  var result types.Workout
  err := transaction.WithContext(ctx).
    Preload("Exercises", func(db *gorm.DB) *gorm.DB {
      return db.Order("workout_exercise.order_index ASC")
    }).
    Preload("Exercises.Exercise").
    Preload("Exercises.Sets", func(db *gorm.DB) *gorm.DB {
      return db.Order("workout_set.set_number ASC")
    }).
    Where("id = ?", workoutID).
    First(&result).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &result, nil
}
