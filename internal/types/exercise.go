package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// Exercise is the canonical record for a movement. Raw user-typed names
// resolve to exactly one row here, by exact name, alias or trigram match.
type Exercise struct {
  ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Name        string          `gorm:"not null;column:name" json:"name"`
  Aliases     datatypes.JSON  `gorm:"type:jsonb;column:aliases;default:'[]'" json:"aliases"`
  MuscleGroup string          `gorm:"column:muscle_group" json:"muscle_group"`
  Type        string          `gorm:"column:type" json:"type"`
  Equipment   string          `gorm:"column:equipment" json:"equipment"`
  CreatedBy   *uuid.UUID      `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
  CreatedAt   time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Exercise) TableName() string {
  return "exercise"
}
