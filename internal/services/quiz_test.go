package services

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/data/repos/testutil"
	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/policy"
)

func newTestQuiz(e *testEnv) *quizService {
	return NewQuizService(e.db, e.log, e.lessons, e.questions, e.attempts, e.progress, e.progressService(), newTestAccess(e, time.Now()), QuizConfig{}).(*quizService)
}

// seedQuizLesson creates a one-lesson course with n single-choice questions
// whose correct option is "B".
func seedQuizLesson(t *testing.T, e *testEnv, n, pool int) (*learning.Course, *learning.Lesson) {
	t.Helper()
	course := testutil.SeedCourse(t, e.ctx, e.db, learning.CategoryTroncCommun, 0)
	lesson := testutil.SeedLesson(t, e.ctx, e.db, course.ID, 1, 1, pool)
	for i := 0; i < n; i++ {
		testutil.SeedQuestion(t, e.ctx, e.db, lesson.ID)
	}
	return course, lesson
}

func answersFor(session *QuizSession, correct int) learning.AnswerSheet {
	out := learning.AnswerSheet{}
	for i, q := range session.Questions {
		if i < correct {
			out[q.ID.String()] = []string{"B"}
		} else {
			out[q.ID.String()] = []string{"A"}
		}
	}
	return out
}

func TestDrawQuestionsWithoutReplacement(t *testing.T) {
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		ids[i] = uuid.New()
	}
	last := func(n int) int { return n - 1 }

	got := drawQuestions(ids, 4, last)
	if len(got) != 4 {
		t.Fatalf("draw size: want=4 got=%d", len(got))
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate draw %s", id)
		}
		seen[id] = true
	}
	if got[0] != ids[9] {
		t.Fatalf("swap with last: want=%s got=%s", ids[9], got[0])
	}
	if len(drawQuestions(ids, 0, last)) != 10 || len(drawQuestions(ids, 50, last)) != 10 {
		t.Fatalf("pool size outside the bank should draw the whole bank")
	}
	if ids[0] == got[0] {
		t.Fatalf("input slice was shuffled in place")
	}
}

func TestStartQuizResumesActiveAttempt(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "quiz@example.com", user.RoleStudent)
	_, lesson := seedQuizLesson(t, e, 8, 5)
	svc := newTestQuiz(e)

	first, err := svc.StartQuiz(e.ctx, student.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartQuiz: %v", err)
	}
	if first.Resumed || len(first.Questions) != 5 {
		t.Fatalf("first start: resumed=%v questions=%d", first.Resumed, len(first.Questions))
	}
	second, err := svc.StartQuiz(e.ctx, student.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartQuiz again: %v", err)
	}
	if !second.Resumed || second.AttemptID != first.AttemptID {
		t.Fatalf("second start should resume attempt %s, got %s", first.AttemptID, second.AttemptID)
	}
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			t.Fatalf("resumed draw differs at %d", i)
		}
	}
}

func TestStartQuizEmptyBank(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "empty@example.com", user.RoleStudent)
	_, lesson := seedQuizLesson(t, e, 0, 5)
	if _, err := newTestQuiz(e).StartQuiz(e.ctx, student.ID, lesson.ID); !errors.Is(err, domainerrs.ErrQuizUnavailable) {
		t.Fatalf("want ErrQuizUnavailable got %v", err)
	}
}

func TestStartQuizConcurrentStartsShareAttempt(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_DSN") != "" {
		t.Skip("shared postgres test transaction cannot serve concurrent callers")
	}
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "dup@example.com", user.RoleStudent)
	_, lesson := seedQuizLesson(t, e, 6, 3)
	svc := newTestQuiz(e)

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 3)
	errs := make([]error, 3)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.StartQuiz(e.ctx, student.ID, lesson.ID)
			errs[i] = err
			if err == nil {
				ids[i] = s.AttemptID
			}
		}(i)
	}
	wg.Wait()
	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("start %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("concurrent starts produced different attempts")
		}
	}
	var rows int64
	e.db.Model(&learning.QuizAttempt{}).Where("user_id = ? AND lesson_id = ?", student.ID, lesson.ID).Count(&rows)
	if rows != 1 {
		t.Fatalf("attempt rows: want=1 got=%d", rows)
	}
}

func TestSubmitAttemptSeventyPercent(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "pass@example.com", user.RoleStudent)
	course, lesson := seedQuizLesson(t, e, 10, 10)
	svc := newTestQuiz(e)

	session, err := svc.StartQuiz(e.ctx, student.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartQuiz: %v", err)
	}
	res, err := svc.SubmitAttempt(e.ctx, student.ID, session.AttemptID, answersFor(session, 7))
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if !res.Passed || res.Score != 7 || res.MaxScore != 10 || res.Percentage != 70 {
		t.Fatalf("result: %+v", res)
	}
	if !res.CourseCompleted || res.CourseID != course.ID {
		t.Fatalf("single-lesson course should be completed: %+v", res)
	}
	row := e.progressRow(t, student.ID, lesson.ID)
	if row == nil || !row.IsCompleted || row.Score != 7 || row.MaxScore != 10 {
		t.Fatalf("progress row: %+v", row)
	}

	if _, err := svc.SubmitAttempt(e.ctx, student.ID, session.AttemptID, answersFor(session, 10)); !errors.Is(err, domainerrs.ErrAlreadySubmitted) {
		t.Fatalf("resubmit: want ErrAlreadySubmitted got %v", err)
	}
}

func TestSubmitLessonQuizEightyPercent(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "lessonquiz@example.com", user.RoleStudent)
	_, lesson := seedQuizLesson(t, e, 10, 10)
	svc := newTestQuiz(e)

	session, err := svc.StartQuiz(e.ctx, student.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartQuiz: %v", err)
	}
	res, err := svc.SubmitLessonQuiz(e.ctx, student.ID, lesson.ID, answersFor(session, 7))
	if err != nil {
		t.Fatalf("SubmitLessonQuiz: %v", err)
	}
	if res.Passed || res.CourseCompleted {
		t.Fatalf("7/10 must fail the lesson quiz: %+v", res)
	}
	row := e.progressRow(t, student.ID, lesson.ID)
	if row != nil && row.IsCompleted {
		t.Fatalf("failed quiz completed the lesson")
	}

	session, err = svc.StartQuiz(e.ctx, student.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartQuiz retry: %v", err)
	}
	if session.Resumed {
		t.Fatalf("a graded attempt must not be resumed")
	}
	res, err = svc.SubmitLessonQuiz(e.ctx, student.ID, lesson.ID, answersFor(session, 8))
	if err != nil {
		t.Fatalf("SubmitLessonQuiz retry: %v", err)
	}
	if !res.Passed {
		t.Fatalf("8/10 must pass the lesson quiz: %+v", res)
	}

	if _, err := svc.SubmitLessonQuiz(e.ctx, student.ID, lesson.ID, nil); !errors.Is(err, domainerrs.ErrNotFound) {
		t.Fatalf("no active attempt: want ErrNotFound got %v", err)
	}
}

func TestSubmitAttemptOfAnotherUser(t *testing.T) {
	e := newTestEnv(t)
	owner := testutil.SeedUser(t, e.ctx, e.db, "own@example.com", user.RoleStudent)
	intruder := testutil.SeedUser(t, e.ctx, e.db, "intruder@example.com", user.RoleStudent)
	_, lesson := seedQuizLesson(t, e, 3, 3)
	svc := newTestQuiz(e)

	session, err := svc.StartQuiz(e.ctx, owner.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartQuiz: %v", err)
	}
	if _, err := svc.SubmitAttempt(e.ctx, intruder.ID, session.AttemptID, answersFor(session, 3)); !errors.Is(err, domainerrs.ErrNotFound) {
		t.Fatalf("want ErrNotFound got %v", err)
	}
}

func TestQuizRefusedAfterAccessExpires(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "quizexpired@example.com", user.RoleStudent)
	_, lesson := seedQuizLesson(t, e, 5, 5)
	svc := newTestQuiz(e)

	session, err := svc.StartQuiz(e.ctx, student.ID, lesson.ID)
	if err != nil {
		t.Fatalf("StartQuiz within trial: %v", err)
	}

	svc.access = newTestAccess(e, student.CreatedAt.Add(10*24*time.Hour))
	expired := func(op string, err error) {
		t.Helper()
		var denied *AccessDeniedError
		if !errors.As(err, &denied) || denied.Decision.Reason != policy.ReasonExpired {
			t.Fatalf("%s: want expired AccessDeniedError got %v", op, err)
		}
	}
	_, err = svc.StartQuiz(e.ctx, student.ID, lesson.ID)
	expired("StartQuiz", err)
	_, err = svc.SubmitAttempt(e.ctx, student.ID, session.AttemptID, answersFor(session, 5))
	expired("SubmitAttempt", err)
	_, err = svc.SubmitLessonQuiz(e.ctx, student.ID, lesson.ID, answersFor(session, 5))
	expired("SubmitLessonQuiz", err)

	if row := e.progressRow(t, student.ID, lesson.ID); row != nil && row.IsCompleted {
		t.Fatalf("refused submission completed the lesson")
	}
	active, err := e.attempts.GetActive(e.ctx, nil, student.ID, lesson.ID)
	if err != nil || active == nil || active.ID != session.AttemptID {
		t.Fatalf("refused submission must leave the attempt active: got=%+v err=%v", active, err)
	}
}

func TestStartQuizRefusedBeforeUnlockMonth(t *testing.T) {
	e := newTestEnv(t)
	student := testutil.SeedUser(t, e.ctx, e.db, "quizearly@example.com", user.RoleStudent)
	now := time.Now().UTC()
	testutil.SeedSubscription(t, e.ctx, e.db, student.ID, user.PackExpert, now.AddDate(0, -1, 0), now.AddDate(0, 26, 0))
	specialty := testutil.SeedCourse(t, e.ctx, e.db, learning.CategorySpecialite, 6)
	lesson := testutil.SeedLesson(t, e.ctx, e.db, specialty.ID, 1, 1, 3)
	for i := 0; i < 3; i++ {
		testutil.SeedQuestion(t, e.ctx, e.db, lesson.ID)
	}

	_, err := newTestQuiz(e).StartQuiz(e.ctx, student.ID, lesson.ID)
	var denied *AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("want AccessDeniedError got %v", err)
	}
	if denied.Decision.Gate != policy.GateTemporal || denied.Decision.Reason != policy.ReasonLockedTime || denied.Decision.UnlockAt == nil {
		t.Fatalf("want locked_time denial got %+v", denied.Decision)
	}
	if active, _ := e.attempts.GetActive(e.ctx, nil, student.ID, lesson.ID); active != nil {
		t.Fatalf("attempt created despite the time lock")
	}
}
