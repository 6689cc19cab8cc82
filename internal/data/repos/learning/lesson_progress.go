package learning

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

// Scores is the quiz outcome stored alongside a completion.
type Scores struct {
	Score    int
	MaxScore int
}

// LessonProgressRepo writes (user, lesson) progress with single-statement
// upserts. No method ever writes is_completed=false over an existing row.
type LessonProgressRepo interface {
	ListByUserLessons(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lessonIDs []uuid.UUID) ([]*types.LessonProgress, error)
	// Heartbeat records the resume position and leaves is_completed untouched.
	Heartbeat(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID, second int) error
	// MarkCompleted sets is_completed=true; scores are written only when given.
	MarkCompleted(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID, scores *Scores) error
	CountCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lessonIDs []uuid.UUID) (int64, error)
}

type lessonProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	repoLog := baseLog.With("repo", "LessonProgressRepo")
	return &lessonProgressRepo{db: db, log: repoLog}
}

var progressConflictColumns = []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}}

func (r *lessonProgressRepo) ListByUserLessons(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lessonIDs []uuid.UUID) ([]*types.LessonProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LessonProgress
	if userID == uuid.Nil || len(lessonIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND lesson_id IN ?", userID, lessonIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonProgressRepo) Heartbeat(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID, second int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || lessonID == uuid.Nil {
		return nil
	}
	if second < 0 {
		second = 0
	}
	now := time.Now().UTC()
	row := &types.LessonProgress{
		ID:               uuid.New(),
		UserID:           userID,
		LessonID:         lessonID,
		LastPlayedSecond: second,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   progressConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{"last_played_second", "updated_at"}),
		}).
		Create(row).Error
}

func (r *lessonProgressRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID, scores *Scores) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || lessonID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	row := &types.LessonProgress{
		ID:          uuid.New(),
		UserID:      userID,
		LessonID:    lessonID,
		IsCompleted: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	cols := []string{"is_completed", "updated_at"}
	if scores != nil {
		row.Score = scores.Score
		row.MaxScore = scores.MaxScore
		cols = append(cols, "score", "max_score")
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   progressConflictColumns,
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(row).Error
}

func (r *lessonProgressRepo) CountCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lessonIDs []uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || len(lessonIDs) == 0 {
		return 0, nil
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.LessonProgress{}).
		Where("user_id = ? AND lesson_id IN ? AND is_completed = ?", userID, lessonIDs, true).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
