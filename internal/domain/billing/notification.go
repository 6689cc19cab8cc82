package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotificationKind string

const (
	NotificationPaymentReceived NotificationKind = "payment_received"
	NotificationAdminPayment    NotificationKind = "admin_payment"
)

type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID        `gorm:"type:uuid;column:recipient_id;not null;index" json:"recipient_id"`
	Kind        NotificationKind `gorm:"column:kind;not null" json:"kind"`
	Title       string           `gorm:"column:title;not null" json:"title"`
	Body        string           `gorm:"column:body" json:"body"`
	Payload     datatypes.JSON   `gorm:"column:payload" json:"payload"`
	ReadAt      *time.Time       `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (Notification) TableName() string { return "notification" }
