package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
)

// SeedUser creates an account plus its profile with the given role.
func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string, role user.Role) *user.Profile {
	tb.Helper()
	u := &user.User{
		ID:       uuid.New(),
		Email:    email,
		Metadata: datatypes.JSON([]byte(`{}`)),
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	p := &user.Profile{
		ID:   u.ID,
		Role: role,
		Pack: user.PackNone,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

func SeedSubscription(tb testing.TB, ctx context.Context, tx *gorm.DB, profileID uuid.UUID, pack user.Pack, start, end time.Time) {
	tb.Helper()
	if err := tx.WithContext(ctx).Model(&user.Profile{}).Where("id = ?", profileID).Updates(map[string]interface{}{
		"pack_type":          pack,
		"subscription_start": start,
		"subscription_end":   end,
	}).Error; err != nil {
		tb.Fatalf("seed subscription: %v", err)
	}
}

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, clientID uuid.UUID, status billing.ProjectStatus, price int64) *billing.Project {
	tb.Helper()
	p := &billing.Project{
		ID:            uuid.New(),
		ClientID:      clientID,
		Title:         "project",
		Status:        status,
		PaymentStatus: billing.PaymentUnpaid,
		FinalPrice:    price,
		Currency:      "XOF",
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, category learning.Category, unlockAtMonth int) *learning.Course {
	tb.Helper()
	c := &learning.Course{
		ID:            uuid.New(),
		Title:         fmt.Sprintf("%s course", category),
		Category:      category,
		UnlockAtMonth: unlockAtMonth,
		PassThreshold: 10,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, chapter, position, poolSize int) *learning.Lesson {
	tb.Helper()
	l := &learning.Lesson{
		ID:              uuid.New(),
		CourseID:        courseID,
		Title:           fmt.Sprintf("lesson %d.%d", chapter, position),
		ChapterPosition: chapter,
		Position:        position,
		DurationSeconds: 600,
		PoolSize:        poolSize,
		VideoObjectKey:  fmt.Sprintf("courses/%s/%d-%d.mp4", courseID, chapter, position),
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

// SeedQuestion creates a single-choice question with options A-D.
func SeedQuestion(tb testing.TB, ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, correct ...string) *learning.Question {
	tb.Helper()
	if len(correct) == 0 {
		correct = []string{"B"}
	}
	q := &learning.Question{
		ID:       uuid.New(),
		LessonID: lessonID,
		Prompt:   "pick one",
		Options: datatypes.NewJSONSlice([]learning.QuestionOption{
			{ID: "A", Label: "a"}, {ID: "B", Label: "b"}, {ID: "C", Label: "c"}, {ID: "D", Label: "d"},
		}),
		CorrectOptionIDs: datatypes.NewJSONSlice(correct),
		Points:           1,
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed question: %v", err)
	}
	return q
}

func SeedCompletion(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, lessonID uuid.UUID, score, maxScore int) {
	tb.Helper()
	p := &learning.LessonProgress{
		ID:          uuid.New(),
		UserID:      userID,
		LessonID:    lessonID,
		IsCompleted: true,
		Score:       score,
		MaxScore:    maxScore,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed completion: %v", err)
	}
}
