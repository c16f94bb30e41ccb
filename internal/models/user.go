package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleInstructor UserRole = "instructor"
	RoleAdmin      UserRole = "admin"
)

// IsElevated reports whether the role bypasses availability and quota policy.
func (r UserRole) IsElevated() bool {
	return r == RoleInstructor || r == RoleAdmin
}

// User is a thin read model of the identity service's principal. Identity,
// sessions and role assignment live outside this service.
type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"default:student"`

	IsActive bool `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
	EnrollmentExpired   EnrollmentStatus = "expired"
)

// Enrollment is a read model of the enrollment/payment service's records; the
// attempt engine only checks for an active row when admitting a learner.
type Enrollment struct {
	ID     uint             `json:"id" gorm:"primaryKey"`
	UserID string           `json:"user_id" gorm:"not null;index;size:255"`
	QuizID uint             `json:"quiz_id" gorm:"not null;index"`
	Status EnrollmentStatus `json:"status" gorm:"default:active;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
