package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/data/repos/billing"
	"github.com/yungbote/entitlement-engine/internal/data/repos/learning"
	"github.com/yungbote/entitlement-engine/internal/data/repos/user"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type UserRepo = user.UserRepo
type ProfileRepo = user.ProfileRepo

type LedgerRepo = billing.LedgerRepo
type ProjectRepo = billing.ProjectRepo
type NotificationRepo = billing.NotificationRepo

type CourseRepo = learning.CourseRepo
type LessonRepo = learning.LessonRepo
type QuestionRepo = learning.QuestionRepo
type LessonProgressRepo = learning.LessonProgressRepo
type QuizAttemptRepo = learning.QuizAttemptRepo
type CertificateRepo = learning.CertificateRepo

type Scores = learning.Scores

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo { return user.NewUserRepo(db, log) }
func NewProfileRepo(db *gorm.DB, log *logger.Logger) ProfileRepo {
	return user.NewProfileRepo(db, log)
}

func NewLedgerRepo(db *gorm.DB, log *logger.Logger) LedgerRepo { return billing.NewLedgerRepo(db, log) }
func NewProjectRepo(db *gorm.DB, log *logger.Logger) ProjectRepo {
	return billing.NewProjectRepo(db, log)
}
func NewNotificationRepo(db *gorm.DB, log *logger.Logger) NotificationRepo {
	return billing.NewNotificationRepo(db, log)
}

func NewCourseRepo(db *gorm.DB, log *logger.Logger) CourseRepo { return learning.NewCourseRepo(db, log) }
func NewLessonRepo(db *gorm.DB, log *logger.Logger) LessonRepo { return learning.NewLessonRepo(db, log) }
func NewQuestionRepo(db *gorm.DB, log *logger.Logger) QuestionRepo {
	return learning.NewQuestionRepo(db, log)
}
func NewLessonProgressRepo(db *gorm.DB, log *logger.Logger) LessonProgressRepo {
	return learning.NewLessonProgressRepo(db, log)
}
func NewQuizAttemptRepo(db *gorm.DB, log *logger.Logger) QuizAttemptRepo {
	return learning.NewQuizAttemptRepo(db, log)
}
func NewCertificateRepo(db *gorm.DB, log *logger.Logger) CertificateRepo {
	return learning.NewCertificateRepo(db, log)
}
