package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/data/repos"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/policy"
)

type ProgressService interface {
	ListCourseLessons(ctx context.Context, userID, courseID uuid.UUID) ([]policy.LessonState, error)
	Heartbeat(ctx context.Context, userID, lessonID uuid.UUID, second int) error
	CompleteLesson(ctx context.Context, userID, lessonID uuid.UUID) error
	// LessonState loads a lesson and its lock state for userID.
	LessonState(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID) (*policy.LessonState, error)
	// CourseCompleted reports whether every lesson of courseID is completed.
	CourseCompleted(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (bool, error)
	// FoundationComplete reports whether every tronc_commun lesson is completed.
	FoundationComplete(ctx context.Context, userID uuid.UUID) (bool, error)
}

type progressService struct {
	log      *logger.Logger
	courses  repos.CourseRepo
	lessons  repos.LessonRepo
	progress repos.LessonProgressRepo
	access   AccessService
}

func NewProgressService(log *logger.Logger, courses repos.CourseRepo, lessons repos.LessonRepo, progress repos.LessonProgressRepo, access AccessService) ProgressService {
	return &progressService{
		log:      log.With("service", "ProgressService"),
		courses:  courses,
		lessons:  lessons,
		progress: progress,
		access:   access,
	}
}

func (s *progressService) ListCourseLessons(ctx context.Context, userID, courseID uuid.UUID) ([]policy.LessonState, error) {
	if userID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}
	course, err := s.courses.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("%w: course", domainerrs.ErrNotFound)
	}
	lessons, completed, err := s.courseState(ctx, nil, userID, courseID)
	if err != nil {
		return nil, err
	}
	return policy.LockStates(lessons, completed), nil
}

func (s *progressService) Heartbeat(ctx context.Context, userID, lessonID uuid.UUID, second int) error {
	if userID == uuid.Nil {
		return domainerrs.ErrAuthenticationRequired
	}
	if second < 0 {
		return fmt.Errorf("%w: negative playback position", domainerrs.ErrInvalidArgument)
	}
	lesson, err := s.lessons.GetByID(ctx, nil, lessonID)
	if err != nil {
		return err
	}
	if lesson == nil {
		return fmt.Errorf("%w: lesson", domainerrs.ErrNotFound)
	}
	return s.progress.Heartbeat(ctx, nil, userID, lessonID, second)
}

func (s *progressService) CompleteLesson(ctx context.Context, userID, lessonID uuid.UUID) error {
	if userID == uuid.Nil {
		return domainerrs.ErrAuthenticationRequired
	}
	st, err := s.LessonState(ctx, nil, userID, lessonID)
	if err != nil {
		return err
	}
	if err := authorizeLesson(ctx, s.access, userID, st); err != nil {
		return err
	}
	if st.IsCompleted {
		return nil
	}
	if err := s.progress.MarkCompleted(ctx, nil, userID, lessonID, nil); err != nil {
		return err
	}
	s.log.Info("Lesson completed", "user_id", userID, "lesson_id", lessonID)
	return nil
}

func (s *progressService) LessonState(ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID) (*policy.LessonState, error) {
	lesson, err := s.lessons.GetByID(ctx, tx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("%w: lesson", domainerrs.ErrNotFound)
	}
	lessons, completed, err := s.courseState(ctx, tx, userID, lesson.CourseID)
	if err != nil {
		return nil, err
	}
	for _, st := range policy.LockStates(lessons, completed) {
		if st.Lesson.ID == lessonID {
			return &st, nil
		}
	}
	return nil, fmt.Errorf("%w: lesson", domainerrs.ErrNotFound)
}

func (s *progressService) CourseCompleted(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (bool, error) {
	ids, err := s.lessons.ListIDsByCourses(ctx, tx, []uuid.UUID{courseID})
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	n, err := s.progress.CountCompleted(ctx, tx, userID, ids)
	if err != nil {
		return false, err
	}
	return n >= int64(len(ids)), nil
}

func (s *progressService) FoundationComplete(ctx context.Context, userID uuid.UUID) (bool, error) {
	return foundationComplete(ctx, s.courses, s.lessons, s.progress, userID)
}

// foundationComplete reports whether userID completed every tronc_commun
// lesson. A foundation without lessons is not complete.
func foundationComplete(ctx context.Context, courses repos.CourseRepo, lessons repos.LessonRepo, marks repos.LessonProgressRepo, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	foundation, err := courses.ListByCategory(ctx, nil, learning.CategoryTroncCommun)
	if err != nil {
		return false, err
	}
	courseIDs := make([]uuid.UUID, 0, len(foundation))
	for _, c := range foundation {
		courseIDs = append(courseIDs, c.ID)
	}
	if len(courseIDs) == 0 {
		return false, nil
	}
	lessonIDs, err := lessons.ListIDsByCourses(ctx, nil, courseIDs)
	if err != nil {
		return false, err
	}
	if len(lessonIDs) == 0 {
		return false, nil
	}
	n, err := marks.CountCompleted(ctx, nil, userID, lessonIDs)
	if err != nil {
		return false, err
	}
	return n >= int64(len(lessonIDs)), nil
}

func (s *progressService) courseState(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) ([]*types.Lesson, map[uuid.UUID]bool, error) {
	lessons, err := s.lessons.ListByCourse(ctx, tx, courseID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uuid.UUID, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	rows, err := s.progress.ListByUserLessons(ctx, tx, userID, ids)
	if err != nil {
		return nil, nil, err
	}
	completed := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		if r.IsCompleted {
			completed[r.LessonID] = true
		}
	}
	return lessons, completed, nil
}
