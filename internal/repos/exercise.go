package repos

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/types"
)

// ExerciseMatch is one fuzzy-search hit with its trigram similarity score.
type ExerciseMatch struct {
  Exercise   types.Exercise
  Similarity float64
}

type ExerciseRepo interface {
  SearchByName(ctx context.Context, tx *gorm.DB, query string, threshold float64, limit int) ([]ExerciseMatch, error)
  GetByExactName(ctx context.Context, tx *gorm.DB, name string) (*types.Exercise, error)
  GetByAlias(ctx context.Context, tx *gorm.DB, alias string) (*types.Exercise, error)
  Create(ctx context.Context, tx *gorm.DB, exercise *types.Exercise) (*types.Exercise, error)
}

type exerciseRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewExerciseRepo(db *gorm.DB, baseLog *logger.Logger) ExerciseRepo {
  repoLog := baseLog.With("repo", "ExerciseRepo")
  return &exerciseRepo{db: db, log: repoLog}
}

type exerciseRow struct {
  types.Exercise
  Sim float64 `gorm:"column:sim"`
}

// SearchByName runs a trigram similarity search over canonical names and
// their aliases. Rows matched through both paths are deduplicated by id,
// keeping the highest similarity.
func (er *exerciseRepo) SearchByName(ctx context.Context, tx *gorm.DB, query string, threshold float64, limit int) ([]ExerciseMatch, error) {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }
  if limit <= 0 {
    limit = 10
  }

  var rows []exerciseRow
  if err := transaction.WithContext(ctx).Raw(`
    SELECT e.*, similarity(e.name, ?) AS sim
    FROM exercise e
    WHERE similarity(e.name, ?) >= ?
    UNION ALL
    SELECT e.*, a.sim
    FROM exercise e
    JOIN LATERAL (
      SELECT max(similarity(al.value, ?)) AS sim
      FROM jsonb_array_elements_text(e.aliases) al
    ) a ON TRUE
    WHERE a.sim >= ?
    ORDER BY sim DESC
    LIMIT ?
  `, query, query, threshold, query, threshold, limit).Scan(&rows).Error; err != nil {
    return nil, err
  }

  seen := map[uuid.UUID]int{}
  matches := make([]ExerciseMatch, 0, len(rows))
  for _, row := range rows {
    if idx, ok := seen[row.Exercise.ID]; ok {
      if row.Sim > matches[idx].Similarity {
        matches[idx].Similarity = row.Sim
      }
      continue
    }
    seen[row.Exercise.ID] = len(matches)
    matches = append(matches, ExerciseMatch{Exercise: row.Exercise, Similarity: row.Sim})
  }
  return matches, nil
}

func (er *exerciseRepo) GetByExactName(ctx context.Context, tx *gorm.DB, name string) (*types.Exercise, error) {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }

  var result types.Exercise
  err := transaction.WithContext(ctx).
    Where("lower(name) = lower(?)", name).
    First(&result).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &result, nil
}

func (er *exerciseRepo) GetByAlias(ctx context.Context, tx *gorm.DB, alias string) (*types.Exercise, error) {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }

  var result types.Exercise
  err := transaction.WithContext(ctx).
    Where(`EXISTS (
      SELECT 1 FROM jsonb_array_elements_text(aliases) al
      WHERE lower(al.value) = lower(?)
    )`, alias).
    First(&result).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &result, nil
}

// Create inserts a canonical exercise. A duplicate-key conflict on the
// normalized-name index means another request created the same exercise
// first; the existing row is re-fetched and returned instead.
func (er *exerciseRepo) Create(ctx context.Context, tx *gorm.DB, exercise *types.Exercise) (*types.Exercise, error) {
  transaction := tx
  if transaction == nil {
    transaction = er.db
  }

  if exercise.Aliases == nil {
    raw, _ := json.Marshal([]string{})
    exercise.Aliases = raw
  }

  err := transaction.WithContext(ctx).Create(exercise).Error
  if err == nil {
    return exercise, nil
  }
  if errors.Is(err, gorm.ErrDuplicatedKey) {
    er.log.Warn("Exercise already exists, re-fetching", "name", exercise.Name)
    existing, getErr := er.GetByExactName(ctx, tx, exercise.Name)
    if getErr != nil {
      return nil, getErr
    }
    if existing == nil {
      return nil, fmt.Errorf("exercise %q conflicted on insert but was not found", exercise.Name)
    }
    return existing, nil
  }
  return nil, err
}
