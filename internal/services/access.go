package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/entitlement-engine/internal/data/repos"
	types "github.com/yungbote/entitlement-engine/internal/domain"
	"github.com/yungbote/entitlement-engine/internal/observability"
	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/policy"
)

// AccessDeniedError carries the gate decision so callers can route to the
// right remediation (pricing for a pack denial, countdown for a time lock).
type AccessDeniedError struct {
	Decision policy.CourseDecision
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", domainerrs.ErrPermissionDenied, e.Decision.Reason)
}

func (e *AccessDeniedError) Unwrap() error { return domainerrs.ErrPermissionDenied }
func (e *AccessDeniedError) Details() any  { return e.Decision }

type AccessDecision struct {
	CourseID uuid.UUID `json:"course_id"`
	policy.CourseDecision
}

type AccessService interface {
	CheckCourseAccess(ctx context.Context, userID, courseID uuid.UUID) (*AccessDecision, error)
}

type accessService struct {
	log      *logger.Logger
	profiles repos.ProfileRepo
	courses  repos.CourseRepo
	lessons  repos.LessonRepo
	marks    repos.LessonProgressRepo
	now      func() time.Time
}

func NewAccessService(log *logger.Logger, profiles repos.ProfileRepo, courses repos.CourseRepo, lessons repos.LessonRepo, marks repos.LessonProgressRepo) AccessService {
	return &accessService{
		log:      log.With("service", "AccessService"),
		profiles: profiles,
		courses:  courses,
		lessons:  lessons,
		marks:    marks,
		now:      time.Now,
	}
}

func (s *accessService) CheckCourseAccess(ctx context.Context, userID, courseID uuid.UUID) (*AccessDecision, error) {
	if userID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}

	var (
		profile    *types.Profile
		course     *types.Course
		foundation bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.GetByID(gctx, nil, userID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		c, err := s.courses.GetByID(gctx, nil, courseID)
		if err != nil {
			return fmt.Errorf("load course: %w", err)
		}
		course = c
		return nil
	})
	g.Go(func() error {
		done, err := foundationComplete(gctx, s.courses, s.lessons, s.marks, userID)
		if err != nil {
			return fmt.Errorf("foundation progress: %w", err)
		}
		foundation = done
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("%w: course", domainerrs.ErrNotFound)
	}

	decision := policy.EvaluateCourse(policy.CourseInput{
		Profile:            profile,
		Course:             course,
		FoundationComplete: foundation,
		Now:                s.now().UTC(),
	})
	gate := string(decision.Gate)
	if gate == "" {
		gate = "none"
	}
	observability.Current().IncAccessDecision(gate, string(decision.Reason))
	if !decision.Allowed {
		s.log.Debug("Course access denied", "user_id", userID, "course_id", courseID, "gate", decision.Gate, "reason", decision.Reason)
	}
	return &AccessDecision{CourseID: courseID, CourseDecision: decision}, nil
}

// requireCourseAccess returns an AccessDeniedError when the course gates
// refuse userID.
func requireCourseAccess(ctx context.Context, access AccessService, userID, courseID uuid.UUID) error {
	decision, err := access.CheckCourseAccess(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &AccessDeniedError{Decision: decision.CourseDecision}
	}
	return nil
}

// authorizeLesson applies the course gates first and the sequential lock
// second, so a course denial is never reported as a lesson lock.
func authorizeLesson(ctx context.Context, access AccessService, userID uuid.UUID, st *policy.LessonState) error {
	if err := requireCourseAccess(ctx, access, userID, st.Lesson.CourseID); err != nil {
		return err
	}
	if st.IsLocked {
		return fmt.Errorf("%w: previous lesson not completed", domainerrs.ErrPermissionDenied)
	}
	return nil
}
