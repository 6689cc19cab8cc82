package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/data/repos"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type Repos struct {
	User           repos.UserRepo
	Profile        repos.ProfileRepo
	Ledger         repos.LedgerRepo
	Project        repos.ProjectRepo
	Notification   repos.NotificationRepo
	Course         repos.CourseRepo
	Lesson         repos.LessonRepo
	Question       repos.QuestionRepo
	LessonProgress repos.LessonProgressRepo
	QuizAttempt    repos.QuizAttemptRepo
	Certificate    repos.CertificateRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		Profile:        repos.NewProfileRepo(db, log),
		Ledger:         repos.NewLedgerRepo(db, log),
		Project:        repos.NewProjectRepo(db, log),
		Notification:   repos.NewNotificationRepo(db, log),
		Course:         repos.NewCourseRepo(db, log),
		Lesson:         repos.NewLessonRepo(db, log),
		Question:       repos.NewQuestionRepo(db, log),
		LessonProgress: repos.NewLessonProgressRepo(db, log),
		QuizAttempt:    repos.NewQuizAttemptRepo(db, log),
		Certificate:    repos.NewCertificateRepo(db, log),
	}
}
