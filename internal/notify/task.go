package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/domain/billing"
)

// Task is one notification for one recipient. Tasks are independent: a
// failing recipient never blocks the others.
type Task struct {
	ID          uuid.UUID                `json:"id"`
	RecipientID uuid.UUID                `json:"recipient_id"`
	Kind        billing.NotificationKind `json:"kind"`
	Title       string                   `json:"title"`
	Body        string                   `json:"body"`
	Payload     map[string]any           `json:"payload,omitempty"`
	Attempt     int                      `json:"attempt"`
	EnqueuedAt  time.Time                `json:"enqueued_at"`
	LastError   string                   `json:"last_error,omitempty"`
}
