package policy

import (
	"sort"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/domain/learning"
)

type LessonState struct {
	Lesson      *learning.Lesson `json:"lesson"`
	Index       int              `json:"index"`
	IsCompleted bool             `json:"is_completed"`
	IsLocked    bool             `json:"is_locked"`
}

// SortLessons orders lessons by chapter, then position, in place.
func SortLessons(lessons []*learning.Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Less(lessons[j]) })
}

// LockStates applies the sequential rule: the first lesson is open and
// lesson N is locked unless lesson N-1 is completed.
func LockStates(lessons []*learning.Lesson, completed map[uuid.UUID]bool) []LessonState {
	ordered := make([]*learning.Lesson, len(lessons))
	copy(ordered, lessons)
	SortLessons(ordered)

	out := make([]LessonState, 0, len(ordered))
	for i, l := range ordered {
		st := LessonState{Lesson: l, Index: i, IsCompleted: completed[l.ID]}
		if i > 0 {
			st.IsLocked = !completed[ordered[i-1].ID]
		}
		out = append(out, st)
	}
	return out
}

// IsLessonLocked reports the lock state of lessonID within lessons.
// Unknown lessons are reported locked.
func IsLessonLocked(lessons []*learning.Lesson, completed map[uuid.UUID]bool, lessonID uuid.UUID) bool {
	for _, st := range LockStates(lessons, completed) {
		if st.Lesson.ID == lessonID {
			return st.IsLocked
		}
	}
	return true
}
