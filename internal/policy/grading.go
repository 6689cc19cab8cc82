package policy

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/domain/learning"
)

const (
	// QuizPassThreshold applies to standalone attempt submission.
	QuizPassThreshold = 0.70
	// LessonQuizPassThreshold applies to the quiz embedded in a lesson page.
	LessonQuizPassThreshold = 0.80
)

// AnswerMatches compares option id sets, ignoring order and duplicates.
// An empty submission never matches.
func AnswerMatches(correct, submitted []string) bool {
	want := toSet(correct)
	got := toSet(submitted)
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	for k := range want {
		if _, ok := got[k]; !ok {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

type GradeResult struct {
	Score    int             `json:"score"`
	MaxScore int             `json:"max_score"`
	Correct  map[string]bool `json:"correct"`
}

// Grade sums the points of every question whose submitted set equals the correct set.
func Grade(questions []*learning.Question, answers learning.AnswerSheet) GradeResult {
	res := GradeResult{Correct: make(map[string]bool, len(questions))}
	for _, q := range questions {
		pts := q.Points
		if pts <= 0 {
			pts = 1
		}
		res.MaxScore += pts
		key := q.ID.String()
		ok := AnswerMatches(q.CorrectOptionIDs, answers[key])
		res.Correct[key] = ok
		if ok {
			res.Score += pts
		}
	}
	return res
}

// Passed reports score/max >= threshold. A zero max never passes.
func Passed(score, max int, threshold float64) bool {
	if max <= 0 {
		return false
	}
	return float64(score)/float64(max)+1e-9 >= threshold
}

// NormalizeThreshold maps a 0-100 percentage onto the 0-20 scale.
func NormalizeThreshold(t float64) float64 {
	if t > 20 {
		return t / 5
	}
	return t
}

// MeetsThreshold compares a 0-20 grade against a configured threshold.
func MeetsThreshold(grade, threshold float64) bool {
	return grade+1e-9 >= NormalizeThreshold(threshold)
}

// RoundGrade rounds to two decimals for storage and display.
func RoundGrade(g float64) float64 {
	return math.Round(g*100) / 100
}

// CourseGrade averages per-lesson score/max_score over every lesson of a
// course and scales the result to 0-20. A completed lesson without a quiz
// counts as full marks; a quiz lesson counts only through its graded score,
// and an open lesson counts as zero. The result is unrounded; callers compare
// it with MeetsThreshold and round it only for storage.
func CourseGrade(lessonIDs []uuid.UUID, quizLessons map[uuid.UUID]bool, progress []*learning.LessonProgress) float64 {
	if len(lessonIDs) == 0 {
		return 0
	}
	byLesson := make(map[uuid.UUID]*learning.LessonProgress, len(progress))
	for _, p := range progress {
		byLesson[p.LessonID] = p
	}
	var sum float64
	for _, id := range lessonIDs {
		p := byLesson[id]
		switch {
		case p == nil || !p.IsCompleted:
		case p.MaxScore > 0:
			sum += float64(p.Score) / float64(p.MaxScore)
		case !quizLessons[id]:
			sum += 1
		}
	}
	return sum / float64(len(lessonIDs)) * 20
}
