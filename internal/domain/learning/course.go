package learning

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryTroncCommun Category = "tronc_commun"
	CategorySpecialite  Category = "specialite"
	CategoryIncubation  Category = "incubation"
	CategoryLab         Category = "lab"
)

type Course struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string    `gorm:"column:title;not null" json:"title"`
	Description      string    `gorm:"column:description" json:"description"`
	Category         Category  `gorm:"column:category;not null;index" json:"category"`
	UnlockAtMonth    int       `gorm:"column:unlock_at_month;not null;default:0" json:"unlock_at_month"`
	RelatedSpecialty string    `gorm:"column:related_specialty" json:"related_specialty"`
	// PassThreshold is either on the 0-20 scale or a 0-100 percentage.
	PassThreshold float64   `gorm:"column:pass_threshold;not null;default:10" json:"pass_threshold"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Course) TableName() string { return "course" }
