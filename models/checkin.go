package models

import "time"

// Checkin marks a completed day for a user. At most one per (user, date).
type Checkin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_checkins_user_date" json:"user_id"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_checkins_user_date" json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// Approval records which privileged user accepted a student's recording for a day.
type Approval struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_approvals_student_date" json:"student_id"`
	ApproverID uint      `gorm:"not null;index" json:"approver_id"`
	Date       string    `gorm:"size:10;not null;uniqueIndex:idx_approvals_student_date" json:"date"`
	CreatedAt  time.Time `json:"created_at"`
}
