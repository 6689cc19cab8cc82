package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/yungbote/entitlement-engine/internal/data/db"
	"github.com/yungbote/entitlement-engine/internal/data/repos"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/observability"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/gcp"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/policy"
)

const certificateNumberAttempts = 5

// CertificateData is everything a renderer needs; the service never renders.
type CertificateData struct {
	CertificateNumber string    `json:"certificate_number"`
	Name              string    `json:"name"`
	CourseID          uuid.UUID `json:"course_id"`
	CourseTitle       string    `json:"course_title"`
	Grade             float64   `json:"grade"`
	IssuedAt          time.Time `json:"issued_at"`
	Instructor        string    `json:"instructor,omitempty"`
}

// InsufficientGradeError is the structured refusal for a grade below the
// course threshold. It matches domainerrs.ErrInsufficientGrade.
type InsufficientGradeError struct {
	Grade     float64 `json:"grade"`
	Threshold float64 `json:"threshold"`
}

func (e *InsufficientGradeError) Error() string {
	return fmt.Sprintf("%s: %.2f/20 below %.2f/20", domainerrs.ErrInsufficientGrade, e.Grade, e.Threshold)
}

func (e *InsufficientGradeError) Unwrap() error { return domainerrs.ErrInsufficientGrade }
func (e *InsufficientGradeError) Details() any  { return e }

type CertificateService interface {
	IssueCertificate(ctx context.Context, userID, courseID uuid.UUID) (*CertificateData, error)
}

type certificateService struct {
	log          *logger.Logger
	certificates repos.CertificateRepo
	courses      repos.CourseRepo
	lessons      repos.LessonRepo
	questions    repos.QuestionRepo
	progress     repos.LessonProgressRepo
	profiles     repos.ProfileRepo
	users        repos.UserRepo
	access       AccessService
	bucket       gcp.BucketService
	instructor   string
	now          func() time.Time
	newNumber    func(now time.Time) (string, error)
}

func NewCertificateService(
	log *logger.Logger,
	certificates repos.CertificateRepo,
	courses repos.CourseRepo,
	lessons repos.LessonRepo,
	questions repos.QuestionRepo,
	progress repos.LessonProgressRepo,
	profiles repos.ProfileRepo,
	users repos.UserRepo,
	access AccessService,
	bucket gcp.BucketService,
	instructor string,
) CertificateService {
	return &certificateService{
		log:          log.With("service", "CertificateService"),
		certificates: certificates,
		courses:      courses,
		lessons:      lessons,
		questions:    questions,
		progress:     progress,
		profiles:     profiles,
		users:        users,
		access:       access,
		bucket:       bucket,
		instructor:   strings.TrimSpace(instructor),
		now:          time.Now,
		newNumber:    newCertificateNumber,
	}
}

func (s *certificateService) IssueCertificate(ctx context.Context, userID, courseID uuid.UUID) (*CertificateData, error) {
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

	existing, err := s.certificates.GetByUserCourse(ctx, nil, userID, courseID)
	if err != nil {
		return nil, err
	}
	reissue := existing != nil
	if existing != nil {
		if err := s.checkArtifact(ctx, existing); err == nil {
			observability.Current().IncCertificate("existing")
			return s.data(existing, course), nil
		} else if !errors.Is(err, domainerrs.ErrStaleArtifact) {
			return nil, err
		}
		s.log.Warn("Dropping certificate with missing artifact",
			"certificate_number", existing.CertificateNumber,
			"user_id", userID,
			"course_id", courseID,
		)
		if err := s.certificates.Delete(ctx, nil, existing.ID); err != nil {
			return nil, fmt.Errorf("delete stale certificate: %w", err)
		}
		s.dropArtifact(ctx, existing)
	}

	// A voided record is replaced even after access lapsed; only a first
	// issuance needs the course gates.
	if !reissue {
		if err := requireCourseAccess(ctx, s.access, userID, courseID); err != nil {
			observability.Current().IncCertificate("access_denied")
			return nil, err
		}
	}

	raw, err := s.courseGrade(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	grade := policy.RoundGrade(raw)
	threshold := policy.NormalizeThreshold(course.PassThreshold)
	if !policy.MeetsThreshold(raw, course.PassThreshold) {
		observability.Current().IncCertificate("insufficient_grade")
		return nil, &InsufficientGradeError{Grade: grade, Threshold: threshold}
	}

	name, err := s.studentName(ctx, userID)
	if err != nil {
		return nil, err
	}

	cert, err := s.create(ctx, userID, courseID, name, grade)
	if err != nil {
		return nil, err
	}
	s.storeArtifact(ctx, cert, course)
	observability.Current().IncCertificate("issued")

	s.log.Info("Certificate issued",
		"certificate_number", cert.CertificateNumber,
		"user_id", userID,
		"course_id", courseID,
		"grade", grade,
	)
	return s.data(cert, course), nil
}

// courseGrade returns the unrounded 0-20 grade of userID in courseID.
func (s *certificateService) courseGrade(ctx context.Context, userID, courseID uuid.UUID) (float64, error) {
	lessonIDs, err := s.lessons.ListIDsByCourses(ctx, nil, []uuid.UUID{courseID})
	if err != nil {
		return 0, err
	}
	quizLessons, err := s.questions.LessonsWithQuestions(ctx, nil, lessonIDs)
	if err != nil {
		return 0, err
	}
	rows, err := s.progress.ListByUserLessons(ctx, nil, userID, lessonIDs)
	if err != nil {
		return 0, err
	}
	return policy.CourseGrade(lessonIDs, quizLessons, rows), nil
}

// checkArtifact returns ErrStaleArtifact when the stored document is missing
// or cannot be reached.
func (s *certificateService) checkArtifact(ctx context.Context, cert *types.Certificate) error {
	if s.bucket == nil {
		return nil
	}
	if strings.TrimSpace(cert.StorageKey) == "" {
		return fmt.Errorf("%w: no storage key", domainerrs.ErrStaleArtifact)
	}
	ok, err := s.bucket.Exists(ctx, gcp.BucketCategoryArtifact, cert.StorageKey)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domainerrs.ErrStaleArtifact, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domainerrs.ErrStaleArtifact, cert.StorageKey)
	}
	return nil
}

// dropArtifact removes whatever is left under the key of a voided
// certificate. Failures are logged only.
func (s *certificateService) dropArtifact(ctx context.Context, cert *types.Certificate) {
	if s.bucket == nil || strings.TrimSpace(cert.StorageKey) == "" {
		return
	}
	if err := s.bucket.Delete(ctx, gcp.BucketCategoryArtifact, cert.StorageKey); err != nil {
		s.log.Warn("Stale certificate artifact cleanup failed", "certificate_number", cert.CertificateNumber, "key", cert.StorageKey, "error", err)
	}
}

func (s *certificateService) create(ctx context.Context, userID, courseID uuid.UUID, name string, grade float64) (*types.Certificate, error) {
	now := s.now().UTC()
	var lastErr error
	for i := 0; i < certificateNumberAttempts; i++ {
		number, err := s.newNumber(now)
		if err != nil {
			return nil, err
		}
		cert := &types.Certificate{
			ID:                uuid.New(),
			UserID:            userID,
			CourseID:          courseID,
			CertificateNumber: number,
			StudentName:       name,
			FinalGrade:        grade,
			IssuedAt:          now,
		}
		err = s.certificates.Create(ctx, nil, cert)
		if err == nil {
			return cert, nil
		}
		if !dbpkg.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create certificate: %w", err)
		}
		// Either a concurrent issue for the same course won, or the number collided.
		winner, gerr := s.certificates.GetByUserCourse(ctx, nil, userID, courseID)
		if gerr != nil {
			return nil, gerr
		}
		if winner != nil {
			return winner, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("allocate certificate number: %w", lastErr)
}

func (s *certificateService) storeArtifact(ctx context.Context, cert *types.Certificate, course *types.Course) {
	if s.bucket == nil || cert.StorageKey != "" {
		return
	}
	raw, err := json.MarshalIndent(s.data(cert, course), "", "  ")
	if err != nil {
		return
	}
	key := fmt.Sprintf("certificates/%s/%s.json", cert.CourseID, cert.CertificateNumber)
	if err := s.bucket.Upload(ctx, gcp.BucketCategoryArtifact, key, "application/json", raw); err != nil {
		s.log.Warn("Certificate artifact upload failed", "certificate_number", cert.CertificateNumber, "error", err)
		return
	}
	if err := s.certificates.SetStorageKey(ctx, nil, cert.ID, key); err != nil {
		s.log.Warn("Certificate storage key update failed", "certificate_number", cert.CertificateNumber, "error", err)
		return
	}
	cert.StorageKey = key
}

func (s *certificateService) studentName(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.profiles.GetByID(ctx, nil, userID)
	if err != nil {
		return "", err
	}
	account, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return "", err
	}
	name := displayName(profile, account)
	if name == "" {
		return "", fmt.Errorf("%w: no display name for student", domainerrs.ErrNotFound)
	}
	return name, nil
}

func (s *certificateService) data(cert *types.Certificate, course *types.Course) *CertificateData {
	return &CertificateData{
		CertificateNumber: cert.CertificateNumber,
		Name:              cert.StudentName,
		CourseID:          course.ID,
		CourseTitle:       course.Title,
		Grade:             cert.FinalGrade,
		IssuedAt:          cert.IssuedAt.UTC(),
		Instructor:        s.instructor,
	}
}

// newCertificateNumber returns CERT-<year>-<8 upper hex>.
func newCertificateNumber(now time.Time) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("CERT-%04d-%s", now.Year(), strings.ToUpper(hex.EncodeToString(b[:]))), nil
}
