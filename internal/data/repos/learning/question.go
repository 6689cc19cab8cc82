package learning

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type QuestionRepo interface {
	ListIDsByLesson(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]uuid.UUID, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error)
	// LessonsWithQuestions returns the subset of lessonIDs that own at least one question.
	LessonsWithQuestions(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) ListIDsByLesson(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if lessonID == uuid.Nil {
		return ids, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("lesson_id = ?", lessonID).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// GetByIDs returns the questions in the order of ids; unknown ids are skipped.
func (r *questionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return []*types.Question{}, nil
	}
	var rows []*types.Question
	if err := transaction.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Question, len(rows))
	for _, q := range rows {
		byID[q.ID] = q
	}
	out := make([]*types.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *questionRepo) LessonsWithQuestions(ctx context.Context, tx *gorm.DB, lessonIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[uuid.UUID]bool)
	if len(lessonIDs) == 0 {
		return out, nil
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("lesson_id IN ?", lessonIDs).
		Distinct("lesson_id").
		Pluck("lesson_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
