package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
	"github.com/yungbote/entitlement-engine/internal/platform/gcp"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

const DefaultContentURLTTL = 15 * time.Minute

type ContentURL struct {
	LessonID  uuid.UUID `json:"lesson_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ContentService interface {
	LessonURL(ctx context.Context, userID, lessonID uuid.UUID) (*ContentURL, error)
}

type contentService struct {
	log      *logger.Logger
	access   AccessService
	progress ProgressService
	bucket   gcp.BucketService
	ttl      time.Duration
	now      func() time.Time
}

func NewContentService(log *logger.Logger, access AccessService, progress ProgressService, bucket gcp.BucketService, ttl time.Duration) ContentService {
	if ttl <= 0 {
		ttl = DefaultContentURLTTL
	}
	return &contentService{
		log:      log.With("service", "ContentService"),
		access:   access,
		progress: progress,
		bucket:   bucket,
		ttl:      ttl,
		now:      time.Now,
	}
}

// LessonURL authorizes the caller and asks storage for a short-lived signed
// URL. Content bytes never pass through this service.
func (s *contentService) LessonURL(ctx context.Context, userID, lessonID uuid.UUID) (*ContentURL, error) {
	if userID == uuid.Nil {
		return nil, domainerrs.ErrAuthenticationRequired
	}
	st, err := s.progress.LessonState(ctx, nil, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if err := authorizeLesson(ctx, s.access, userID, st); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(st.Lesson.VideoObjectKey)
	if key == "" {
		return nil, fmt.Errorf("%w: lesson has no content", domainerrs.ErrNotFound)
	}
	if s.bucket == nil {
		return nil, fmt.Errorf("content storage not configured")
	}

	expires := s.now().UTC().Add(s.ttl)
	url, err := s.bucket.SignedURL(gcp.BucketCategoryContent, key, s.ttl)
	if err != nil {
		s.log.Error("Signing content URL failed", "lesson_id", lessonID, "error", err)
		return nil, fmt.Errorf("sign content url: %w", err)
	}
	return &ContentURL{LessonID: lessonID, URL: url, ExpiresAt: expires}, nil
}
