package learning

import (
	"time"

	"github.com/google/uuid"
)

type Lesson struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID        uuid.UUID `gorm:"type:uuid;column:course_id;not null;index:idx_lesson_course_order,priority:1" json:"course_id"`
	Title           string    `gorm:"column:title;not null" json:"title"`
	ChapterPosition int       `gorm:"column:chapter_position;not null;default:0;index:idx_lesson_course_order,priority:2" json:"chapter_position"`
	Position        int       `gorm:"column:position;not null;default:0;index:idx_lesson_course_order,priority:3" json:"position"`
	DurationSeconds int       `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	PoolSize        int       `gorm:"column:pool_size;not null;default:10" json:"pool_size"`
	VideoObjectKey  string    `gorm:"column:video_object_key" json:"-"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }

// Less orders lessons by chapter, then by position inside the chapter.
func (l *Lesson) Less(o *Lesson) bool {
	if l.ChapterPosition != o.ChapterPosition {
		return l.ChapterPosition < o.ChapterPosition
	}
	return l.Position < o.Position
}
