package learning

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/data/repos/testutil"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
)

func progressRow(t *testing.T, ctx context.Context, repo LessonProgressRepo, userID, lessonID uuid.UUID) *types.LessonProgress {
	t.Helper()
	rows, err := repo.ListByUserLessons(ctx, nil, userID, []uuid.UUID{lessonID})
	if err != nil {
		t.Fatalf("ListByUserLessons: %v", err)
	}
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func TestLessonProgressNeverRegresses(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewLessonProgressRepo(db, testutil.Logger(t))

	p := testutil.SeedUser(t, ctx, db, "progressrepo@example.com", user.RoleStudent)
	course := testutil.SeedCourse(t, ctx, db, learning.CategoryTroncCommun, 0)
	first := testutil.SeedLesson(t, ctx, db, course.ID, 1, 1, 0)
	second := testutil.SeedLesson(t, ctx, db, course.ID, 1, 2, 0)

	if err := repo.Heartbeat(ctx, nil, p.ID, first.ID, 42); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	row := progressRow(t, ctx, repo, p.ID, first.ID)
	if row == nil || row.LastPlayedSecond != 42 || row.IsCompleted {
		t.Fatalf("after heartbeat: row=%+v", row)
	}

	if err := repo.MarkCompleted(ctx, nil, p.ID, first.ID, &Scores{Score: 4, MaxScore: 5}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := repo.Heartbeat(ctx, nil, p.ID, first.ID, -3); err != nil {
		t.Fatalf("Heartbeat after completion: %v", err)
	}
	if err := repo.MarkCompleted(ctx, nil, p.ID, first.ID, nil); err != nil {
		t.Fatalf("MarkCompleted without scores: %v", err)
	}

	row = progressRow(t, ctx, repo, p.ID, first.ID)
	if row == nil {
		t.Fatalf("progress row missing after completion")
	}
	if !row.IsCompleted {
		t.Fatalf("heartbeat must not clear is_completed")
	}
	if row.LastPlayedSecond != 0 {
		t.Fatalf("negative second should clamp to 0, got %d", row.LastPlayedSecond)
	}
	if row.Score != 4 || row.MaxScore != 5 {
		t.Fatalf("scores overwritten by a score-less completion: %d/%d", row.Score, row.MaxScore)
	}

	n, err := repo.CountCompleted(ctx, nil, p.ID, []uuid.UUID{first.ID, second.ID})
	if err != nil || n != 1 {
		t.Fatalf("CountCompleted: n=%d err=%v", n, err)
	}
	if missing := progressRow(t, ctx, repo, p.ID, second.ID); missing != nil {
		t.Fatalf("untouched lesson has a progress row: %+v", missing)
	}
}

func TestQuizAttemptSingleActive(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewQuizAttemptRepo(db, testutil.Logger(t))

	p := testutil.SeedUser(t, ctx, db, "attemptrepo@example.com", user.RoleStudent)
	course := testutil.SeedCourse(t, ctx, db, learning.CategoryTroncCommun, 0)
	lesson := testutil.SeedLesson(t, ctx, db, course.ID, 1, 1, 0)

	a := &types.QuizAttempt{UserID: p.ID, LessonID: lesson.ID}
	created, err := repo.CreateActive(ctx, nil, a)
	if err != nil || !created {
		t.Fatalf("CreateActive: created=%v err=%v", created, err)
	}
	created, err = repo.CreateActive(ctx, nil, &types.QuizAttempt{UserID: p.ID, LessonID: lesson.ID})
	if err != nil {
		t.Fatalf("CreateActive(second): %v", err)
	}
	if created {
		t.Fatalf("expected a second active attempt to be refused")
	}

	active, err := repo.GetActive(ctx, nil, p.ID, lesson.ID)
	if err != nil || active == nil || active.ID != a.ID {
		t.Fatalf("GetActive: got=%+v err=%v", active, err)
	}

	a.Score, a.MaxScore, a.Passed = 3, 4, true
	done := time.Now().UTC()
	a.CompletedAt = &done
	completed, err := repo.Complete(ctx, nil, a)
	if err != nil || !completed {
		t.Fatalf("Complete: completed=%v err=%v", completed, err)
	}
	completed, err = repo.Complete(ctx, nil, a)
	if err != nil || completed {
		t.Fatalf("Complete(again): completed=%v err=%v", completed, err)
	}

	if active, err := repo.GetActive(ctx, nil, p.ID, lesson.ID); err != nil || active != nil {
		t.Fatalf("GetActive after completion: got=%+v err=%v", active, err)
	}
	created, err = repo.CreateActive(ctx, nil, &types.QuizAttempt{UserID: p.ID, LessonID: lesson.ID})
	if err != nil || !created {
		t.Fatalf("CreateActive after completion: created=%v err=%v", created, err)
	}

	var rows int64
	if err := db.Model(&types.QuizAttempt{}).Where("user_id = ? AND lesson_id = ?", p.ID, lesson.ID).Count(&rows).Error; err != nil || rows != 2 {
		t.Fatalf("attempt rows: n=%d err=%v", rows, err)
	}
}

func TestLessonsWithQuestions(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewQuestionRepo(db, testutil.Logger(t))

	course := testutil.SeedCourse(t, ctx, db, learning.CategoryTroncCommun, 0)
	quiz := testutil.SeedLesson(t, ctx, db, course.ID, 1, 1, 3)
	video := testutil.SeedLesson(t, ctx, db, course.ID, 1, 2, 0)
	testutil.SeedQuestion(t, ctx, db, quiz.ID)
	testutil.SeedQuestion(t, ctx, db, quiz.ID)

	got, err := repo.LessonsWithQuestions(ctx, nil, []uuid.UUID{quiz.ID, video.ID})
	if err != nil {
		t.Fatalf("LessonsWithQuestions: %v", err)
	}
	if len(got) != 1 || !got[quiz.ID] || got[video.ID] {
		t.Fatalf("LessonsWithQuestions: got=%v", got)
	}
	if empty, err := repo.LessonsWithQuestions(ctx, nil, nil); err != nil || len(empty) != 0 {
		t.Fatalf("LessonsWithQuestions(nil): got=%v err=%v", empty, err)
	}
}
