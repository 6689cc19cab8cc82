package domain

import (
	"github.com/yungbote/entitlement-engine/internal/domain/billing"
	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
)

type (
	User    = user.User
	Profile = user.Profile
	Role    = user.Role
	Pack    = user.Pack

	Transaction  = billing.Transaction
	Project      = billing.Project
	Notification = billing.Notification

	Course         = learning.Course
	Lesson         = learning.Lesson
	Question       = learning.Question
	LessonProgress = learning.LessonProgress
	QuizAttempt    = learning.QuizAttempt
	Certificate    = learning.Certificate
)

// Models lists every persisted model in migration order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&user.Profile{},
		&billing.Transaction{},
		&billing.Project{},
		&billing.Notification{},
		&learning.Course{},
		&learning.Lesson{},
		&learning.Question{},
		&learning.LessonProgress{},
		&learning.QuizAttempt{},
		&learning.Certificate{},
	}
}
