package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/data/repos"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/observability"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/policy"
)

type QuizConfig struct {
	// AttemptThreshold applies to SubmitAttempt.
	AttemptThreshold float64
	// LessonThreshold applies to SubmitLessonQuiz.
	LessonThreshold float64
}

func DefaultQuizConfig() QuizConfig {
	return QuizConfig{
		AttemptThreshold: policy.QuizPassThreshold,
		LessonThreshold:  policy.LessonQuizPassThreshold,
	}
}

// QuizQuestion is the client view of a question; correct options are never included.
type QuizQuestion struct {
	ID             uuid.UUID                 `json:"id"`
	Prompt         string                    `json:"prompt"`
	Options        []learning.QuestionOption `json:"options"`
	Points         int                       `json:"points"`
	MultipleChoice bool                      `json:"multiple_choice"`
}

type QuizSession struct {
	AttemptID uuid.UUID      `json:"attempt_id"`
	LessonID  uuid.UUID      `json:"lesson_id"`
	StartedAt time.Time      `json:"started_at"`
	Resumed   bool           `json:"resumed"`
	Questions []QuizQuestion `json:"questions"`
}

type QuizResult struct {
	AttemptID  uuid.UUID       `json:"attempt_id"`
	LessonID   uuid.UUID       `json:"lesson_id"`
	CourseID   uuid.UUID       `json:"course_id"`
	Score      int             `json:"score"`
	MaxScore   int             `json:"max_score"`
	Percentage float64         `json:"percentage"`
	Threshold  float64         `json:"threshold"`
	Passed     bool            `json:"passed"`
	Correct    map[string]bool `json:"correct"`
	// CourseCompleted is set when this pass completed the last open lesson of
	// the course; the caller may then request a certificate.
	CourseCompleted bool `json:"course_completed"`
}

type QuizService interface {
	StartQuiz(ctx context.Context, userID, lessonID uuid.UUID) (*QuizSession, error)
	SubmitAttempt(ctx context.Context, userID, attemptID uuid.UUID, answers learning.AnswerSheet) (*QuizResult, error)
	SubmitLessonQuiz(ctx context.Context, userID, lessonID uuid.UUID, answers learning.AnswerSheet) (*QuizResult, error)
}

type quizService struct {
	db        *gorm.DB
	log       *logger.Logger
	lessons   repos.LessonRepo
	questions repos.QuestionRepo
	attempts  repos.QuizAttemptRepo
	marks     repos.LessonProgressRepo
	progress  ProgressService
	access    AccessService
	cfg       QuizConfig
	intn      func(n int) int
	now       func() time.Time
}

func NewQuizService(
	db *gorm.DB,
	log *logger.Logger,
	lessons repos.LessonRepo,
	questions repos.QuestionRepo,
	attempts repos.QuizAttemptRepo,
	marks repos.LessonProgressRepo,
	progress ProgressService,
	access AccessService,
	cfg QuizConfig,
) QuizService {
	def := DefaultQuizConfig()
	if cfg.AttemptThreshold <= 0 || cfg.AttemptThreshold > 1 {
		cfg.AttemptThreshold = def.AttemptThreshold
	}
	if cfg.LessonThreshold <= 0 || cfg.LessonThreshold > 1 {
		cfg.LessonThreshold = def.LessonThreshold
	}
	return &quizService{
		db:        db,
		log:       log.With("service", "QuizService"),
		lessons:   lessons,
		questions: questions,
		attempts:  attempts,
		marks:     marks,
		progress:  progress,
		access:    access,
		cfg:       cfg,
		intn:      rand.IntN,
		now:       time.Now,
	}
}

func (s *quizService) StartQuiz(ctx context.Context, userID, lessonID uuid.UUID) (*QuizSession, error) {
	if userID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}
	st, err := s.authorize(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}

	if active, err := s.attempts.GetActive(ctx, nil, userID, lessonID); err != nil {
		return nil, err
	} else if active != nil {
		return s.session(ctx, active, true)
	}

	bank, err := s.questions.ListIDsByLesson(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, fmt.Errorf("%w: lesson has no questions", domainerrs.ErrQuizUnavailable)
	}

	attempt := &types.QuizAttempt{
		ID:          uuid.New(),
		UserID:      userID,
		LessonID:    lessonID,
		QuestionIDs: datatypes.NewJSONSlice(drawQuestions(bank, st.Lesson.PoolSize, s.intn)),
		StartedAt:   s.now().UTC(),
	}
	created, err := s.attempts.CreateActive(ctx, nil, attempt)
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	if !created {
		// A concurrent start won; hand back its draw.
		winner, err := s.attempts.GetActive(ctx, nil, userID, lessonID)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, fmt.Errorf("active attempt vanished for lesson %s", lessonID)
		}
		return s.session(ctx, winner, true)
	}
	s.log.Debug("Quiz attempt started", "user_id", userID, "lesson_id", lessonID, "attempt_id", attempt.ID, "questions", len(attempt.QuestionIDs))
	return s.session(ctx, attempt, false)
}

func (s *quizService) SubmitAttempt(ctx context.Context, userID, attemptID uuid.UUID, answers learning.AnswerSheet) (*QuizResult, error) {
	if userID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}
	attempt, err := s.attempts.GetByID(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || attempt.UserID != userID {
		return nil, fmt.Errorf("%w: quiz attempt", domainerrs.ErrNotFound)
	}
	if attempt.State() == learning.AttemptCompleted {
		return nil, domainerrs.ErrAlreadySubmitted
	}
	if _, err := s.authorize(ctx, userID, attempt.LessonID); err != nil {
		return nil, err
	}
	return s.grade(ctx, attempt, answers, "attempt", s.cfg.AttemptThreshold)
}

func (s *quizService) SubmitLessonQuiz(ctx context.Context, userID, lessonID uuid.UUID, answers learning.AnswerSheet) (*QuizResult, error) {
	if userID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}
	if _, err := s.authorize(ctx, userID, lessonID); err != nil {
		return nil, err
	}
	attempt, err := s.attempts.GetActive(ctx, nil, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, fmt.Errorf("%w: no active quiz attempt for lesson", domainerrs.ErrNotFound)
	}
	return s.grade(ctx, attempt, answers, "lesson", s.cfg.LessonThreshold)
}

// authorize loads the lesson state and applies the course gates and the
// sequential lock.
func (s *quizService) authorize(ctx context.Context, userID, lessonID uuid.UUID) (*policy.LessonState, error) {
	st, err := s.progress.LessonState(ctx, nil, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if err := authorizeLesson(ctx, s.access, userID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// grade scores attempt against threshold; path labels which entry point
// graded it.
func (s *quizService) grade(ctx context.Context, attempt *types.QuizAttempt, answers learning.AnswerSheet, path string, threshold float64) (*QuizResult, error) {
	if answers == nil {
		answers = learning.AnswerSheet{}
	}
	out := &QuizResult{AttemptID: attempt.ID, LessonID: attempt.LessonID, Threshold: threshold}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questions, err := s.questions.GetByIDs(ctx, tx, attempt.QuestionIDs)
		if err != nil {
			return err
		}
		res := policy.Grade(questions, answers)
		passed := policy.Passed(res.Score, res.MaxScore, threshold)

		attempt.Answers = datatypes.NewJSONType(answers)
		attempt.Score = res.Score
		attempt.MaxScore = res.MaxScore
		attempt.Passed = passed
		now := s.now().UTC()
		attempt.CompletedAt = &now
		ok, err := s.attempts.Complete(ctx, tx, attempt)
		if err != nil {
			return err
		}
		if !ok {
			return domainerrs.ErrAlreadySubmitted
		}

		out.Score, out.MaxScore, out.Passed, out.Correct = res.Score, res.MaxScore, passed, res.Correct
		if res.MaxScore > 0 {
			out.Percentage = policy.RoundGrade(float64(res.Score) / float64(res.MaxScore) * 100)
		}
		if !passed {
			return nil
		}

		if err := s.marks.MarkCompleted(ctx, tx, attempt.UserID, attempt.LessonID, &repos.Scores{Score: res.Score, MaxScore: res.MaxScore}); err != nil {
			return fmt.Errorf("mark lesson completed: %w", err)
		}
		lesson, err := s.lessons.GetByID(ctx, tx, attempt.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return nil
		}
		out.CourseID = lesson.CourseID
		done, err := s.progress.CourseCompleted(ctx, tx, attempt.UserID, lesson.CourseID)
		if err != nil {
			return err
		}
		out.CourseCompleted = done
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncQuizGrade(path, out.Passed)

	s.log.Info("Quiz graded",
		"user_id", attempt.UserID,
		"lesson_id", attempt.LessonID,
		"attempt_id", attempt.ID,
		"score", out.Score,
		"max_score", out.MaxScore,
		"passed", out.Passed,
	)
	return out, nil
}

// session loads the frozen questions of attempt in draw order.
func (s *quizService) session(ctx context.Context, attempt *types.QuizAttempt, resumed bool) (*QuizSession, error) {
	rows, err := s.questions.GetByIDs(ctx, nil, attempt.QuestionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Question, len(rows))
	for _, q := range rows {
		byID[q.ID] = q
	}
	out := &QuizSession{
		AttemptID: attempt.ID,
		LessonID:  attempt.LessonID,
		StartedAt: attempt.StartedAt,
		Resumed:   resumed,
		Questions: make([]QuizQuestion, 0, len(attempt.QuestionIDs)),
	}
	for _, id := range attempt.QuestionIDs {
		q := byID[id]
		if q == nil {
			continue
		}
		out.Questions = append(out.Questions, QuizQuestion{
			ID:             q.ID,
			Prompt:         q.Prompt,
			Options:        q.Options,
			Points:         q.Points,
			MultipleChoice: q.MultipleChoice(),
		})
	}
	return out, nil
}

// drawQuestions picks n ids uniformly without replacement with a partial
// Fisher-Yates shuffle. n <= 0 or n >= len(ids) draws the whole bank.
func drawQuestions(ids []uuid.UUID, n int, intn func(int) int) []uuid.UUID {
	pool := make([]uuid.UUID, len(ids))
	copy(pool, ids)
	if n <= 0 || n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
