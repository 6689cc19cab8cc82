package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type QuestionOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Question belongs to a lesson's bank. CorrectOptionIDs never leaves the server.
type Question struct {
	ID               uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID         uuid.UUID                           `gorm:"type:uuid;column:lesson_id;not null;index" json:"lesson_id"`
	Prompt           string                              `gorm:"column:prompt;not null" json:"prompt"`
	Options          datatypes.JSONSlice[QuestionOption] `gorm:"column:options" json:"options"`
	CorrectOptionIDs datatypes.JSONSlice[string]         `gorm:"column:correct_option_ids" json:"-"`
	Points           int                                 `gorm:"column:points;not null;default:1" json:"points"`
	CreatedAt        time.Time                           `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Question) TableName() string { return "question" }

// MultipleChoice reports whether more than one option is correct.
func (q *Question) MultipleChoice() bool { return len(q.CorrectOptionIDs) > 1 }
