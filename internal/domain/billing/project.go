package billing

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectDraft           ProjectStatus = "draft"
	ProjectPendingApproval ProjectStatus = "pending_approval"
	ProjectOpen            ProjectStatus = "open"
	ProjectInProgress      ProjectStatus = "in_progress"
	ProjectReview          ProjectStatus = "review"
	ProjectCompleted       ProjectStatus = "completed"
)

// Fundable reports whether a payment moves the project onto the marketplace.
func (s ProjectStatus) Fundable() bool {
	return s == ProjectDraft || s == ProjectPendingApproval
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type Project struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID      uuid.UUID     `gorm:"type:uuid;column:client_id;not null;index" json:"client_id"`
	Title         string        `gorm:"column:title;not null" json:"title"`
	Status        ProjectStatus `gorm:"column:status;not null;default:'draft'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"column:payment_status;not null;default:'unpaid'" json:"payment_status"`
	PerformerID   *uuid.UUID    `gorm:"type:uuid;column:performer_id" json:"performer_id,omitempty"`
	FinalPrice    int64         `gorm:"column:final_price;not null;default:0" json:"final_price"`
	Currency      string        `gorm:"column:currency;not null;default:'XOF'" json:"currency"`
	CreatedAt     time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Project) TableName() string { return "project" }
