package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AnswerSheet maps a question id to the selected option ids.
type AnswerSheet map[string][]string

type AttemptState string

const (
	AttemptNone      AttemptState = "none"
	AttemptActive    AttemptState = "active"
	AttemptCompleted AttemptState = "completed"
)

// QuizAttempt freezes the drawn question ids in QuestionIDs. At most one
// attempt per (user, lesson) has a nil CompletedAt.
type QuizAttempt struct {
	ID          uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID                       `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`
	LessonID    uuid.UUID                       `gorm:"type:uuid;column:lesson_id;not null;index" json:"lesson_id"`
	QuestionIDs datatypes.JSONSlice[uuid.UUID]  `gorm:"column:question_ids" json:"question_ids"`
	StartedAt   time.Time                       `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt *time.Time                      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Answers     datatypes.JSONType[AnswerSheet] `gorm:"column:answers" json:"answers,omitempty"`
	Score       int                             `gorm:"column:score;not null;default:0" json:"score"`
	MaxScore    int                             `gorm:"column:max_score;not null;default:0" json:"max_score"`
	Passed      bool                            `gorm:"column:passed;not null;default:false" json:"passed"`
	CreatedAt   time.Time                       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (QuizAttempt) TableName() string { return "quiz_attempt" }

func (a *QuizAttempt) State() AttemptState {
	switch {
	case a == nil:
		return AttemptNone
	case a.CompletedAt == nil:
		return AttemptActive
	default:
		return AttemptCompleted
	}
}
