package learning

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type QuizAttemptRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.QuizAttempt, error)
	GetActive(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID) (*types.QuizAttempt, error)
	// CreateActive inserts attempt unless an active one exists for (user, lesson).
	CreateActive(ctx context.Context, tx *gorm.DB, attempt *types.QuizAttempt) (created bool, err error)
	// Complete closes an active attempt. completed is false when it was already closed.
	Complete(ctx context.Context, tx *gorm.DB, attempt *types.QuizAttempt) (completed bool, err error)
}

type quizAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizAttemptRepo(db *gorm.DB, baseLog *logger.Logger) QuizAttemptRepo {
	repoLog := baseLog.With("repo", "QuizAttemptRepo")
	return &quizAttemptRepo{db: db, log: repoLog}
}

func (r *quizAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.QuizAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.QuizAttempt
	if err := transaction.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *quizAttemptRepo) GetActive(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID) (*types.QuizAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || lessonID == uuid.Nil {
		return nil, nil
	}
	var row types.QuizAttempt
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ? AND completed_at IS NULL", userID, lessonID).
		Order("started_at DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *quizAttemptRepo) CreateActive(ctx context.Context, tx *gorm.DB, attempt *types.QuizAttempt) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if attempt == nil {
		return false, nil
	}
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now().UTC()
	}
	attempt.CompletedAt = nil
	attempt.Answers = datatypes.NewJSONType(learning.AnswerSheet{})

	// Targets the partial unique index idx_quiz_attempt_user_lesson_active.
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "completed_at IS NULL"},
			}},
			DoNothing: true,
		}).
		Create(attempt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *quizAttemptRepo) Complete(ctx context.Context, tx *gorm.DB, attempt *types.QuizAttempt) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if attempt == nil || attempt.ID == uuid.Nil {
		return false, nil
	}
	completedAt := time.Now().UTC()
	if attempt.CompletedAt != nil {
		completedAt = attempt.CompletedAt.UTC()
	}
	res := transaction.WithContext(ctx).
		Model(&types.QuizAttempt{}).
		Where("id = ? AND completed_at IS NULL", attempt.ID).
		Updates(map[string]interface{}{
			"completed_at": completedAt,
			"answers":      attempt.Answers,
			"score":        attempt.Score,
			"max_score":    attempt.MaxScore,
			"passed":       attempt.Passed,
			"updated_at":   completedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	attempt.CompletedAt = &completedAt
	return true, nil
}
