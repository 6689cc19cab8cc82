package learning

import (
	"time"

	"github.com/google/uuid"
)

type Certificate struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;column:user_id;not null;uniqueIndex:ux_certificate_user_course,priority:1" json:"user_id"`
	CourseID          uuid.UUID `gorm:"type:uuid;column:course_id;not null;uniqueIndex:ux_certificate_user_course,priority:2" json:"course_id"`
	CertificateNumber string    `gorm:"column:certificate_number;not null;uniqueIndex" json:"certificate_number"`
	StudentName       string    `gorm:"column:student_name;not null" json:"student_name"`
	FinalGrade        float64   `gorm:"column:final_grade;not null" json:"final_grade"`
	IssuedAt          time.Time `gorm:"column:issued_at;not null" json:"issued_at"`
	StorageKey        string    `gorm:"column:storage_key" json:"storage_key"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Certificate) TableName() string { return "certificate" }
