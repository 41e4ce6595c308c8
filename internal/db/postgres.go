package db

import (
  "fmt"

  "gorm.io/driver/postgres"
  "gorm.io/gorm"

  "github.com/yungbote/liftlog-backend/internal/logger"
  "github.com/yungbote/liftlog-backend/internal/types"
  "github.com/yungbote/liftlog-backend/internal/utils"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  log.Info("Loading environment variables...")
  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "liftlog", log)

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  log.Info("Connecting to Postgres...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
    TranslateError:                           true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  // uuid-ossp for uuid_generate_v4 defaults, pg_trgm for similarity search.
  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    log.Error("Failed to enable uuid-ossp extension", "error", err)
    return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
  }
  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm;`).Error; err != nil {
    log.Error("Failed to enable pg_trgm extension", "error", err)
    return nil, fmt.Errorf("Failed to enable pg_trgm extension: %w", err)
  }

  return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Exercise{},
    &types.Workout{},
    &types.WorkoutExercise{},
    &types.WorkoutSet{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }

  s.log.Info("Configuring foreign key relationships for postgres tables...")
  if err := s.db.Exec(`
    ALTER TABLE "workout_exercise"
    DROP CONSTRAINT IF EXISTS "fk_workout_exercise_workout_id";
    ALTER TABLE "workout_exercise"
    ADD CONSTRAINT "fk_workout_exercise_workout_id"
    FOREIGN KEY ("workout_id")
    REFERENCES "workout"("id")
    ON DELETE CASCADE
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_workout_exercise_workout_id: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "workout_exercise"
    DROP CONSTRAINT IF EXISTS "fk_workout_exercise_exercise_id";
    ALTER TABLE "workout_exercise"
    ADD CONSTRAINT "fk_workout_exercise_exercise_id"
    FOREIGN KEY ("exercise_id")
    REFERENCES "exercise"("id")
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_workout_exercise_exercise_id: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "workout_set"
    DROP CONSTRAINT IF EXISTS "fk_workout_set_workout_exercise_id";
    ALTER TABLE "workout_set"
    ADD CONSTRAINT "fk_workout_set_workout_exercise_id"
    FOREIGN KEY ("workout_exercise_id")
    REFERENCES "workout_exercise"("id")
    ON DELETE CASCADE
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_workout_set_workout_exercise_id: %w", err)
  }

  s.log.Info("Configuring exercise indexes...")
  // Unique on the normalized name so concurrent creates of the same new
  // exercise surface as a duplicate-key conflict instead of a second row.
  if err := s.db.Exec(`
    CREATE UNIQUE INDEX IF NOT EXISTS "idx_exercise_name_lower"
    ON "exercise" (lower(name))
  `).Error; err != nil {
    return fmt.Errorf("Failed to add idx_exercise_name_lower: %w", err)
  }
  if err := s.db.Exec(`
    CREATE INDEX IF NOT EXISTS "idx_exercise_name_trgm"
    ON "exercise" USING gin (name gin_trgm_ops)
  `).Error; err != nil {
    return fmt.Errorf("Failed to add idx_exercise_name_trgm: %w", err)
  }

  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
