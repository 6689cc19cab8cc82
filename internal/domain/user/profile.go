package user

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleClient  Role = "client"
	RoleAdmin   Role = "admin"
)

type Pack string

const (
	PackNone      Pack = "none"
	PackEssentiel Pack = "essentiel"
	PackExpert    Pack = "expert"
	PackMaster    Pack = "master"
)

func (p Pack) Valid() bool {
	switch p {
	case PackEssentiel, PackExpert, PackMaster:
		return true
	default:
		return false
	}
}

// HasPack reports whether the profile holds a paid tier, active or not.
func (p Pack) HasPack() bool { return p.Valid() }

// Profile is keyed by the account id. CreatedAt is the account creation time
// used for the trial window.
type Profile struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Role              Role       `gorm:"column:role;not null;default:'student';index" json:"role"`
	FullName          string     `gorm:"column:full_name" json:"full_name"`
	Pack              Pack       `gorm:"column:pack_type;not null;default:'none'" json:"pack_type"`
	SubscriptionStart *time.Time `gorm:"column:subscription_start" json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time `gorm:"column:subscription_end" json:"subscription_end,omitempty"`
	Specialty         string     `gorm:"column:specialty" json:"specialty"`
	CreatedAt         time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string { return "profile" }

func (p *Profile) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// HasActiveSubscription reports whether subscription_end lies after now.
func (p *Profile) HasActiveSubscription(now time.Time) bool {
	return p != nil && p.SubscriptionEnd != nil && p.SubscriptionEnd.After(now)
}
