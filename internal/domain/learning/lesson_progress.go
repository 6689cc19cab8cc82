package learning

import (
	"time"

	"github.com/google/uuid"
)

// LessonProgress is keyed by (user, lesson). IsCompleted never goes back to false.
type LessonProgress struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;column:user_id;not null;uniqueIndex:ux_lesson_progress_user_lesson,priority:1" json:"user_id"`
	LessonID         uuid.UUID `gorm:"type:uuid;column:lesson_id;not null;uniqueIndex:ux_lesson_progress_user_lesson,priority:2;index" json:"lesson_id"`
	IsCompleted      bool      `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	Score            int       `gorm:"column:score;not null;default:0" json:"score"`
	MaxScore         int       `gorm:"column:max_score;not null;default:0" json:"max_score"`
	LastPlayedSecond int       `gorm:"column:last_played_second;not null;default:0" json:"last_played_second"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }
