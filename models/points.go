package models

import "time"

// Fixed ledger reasons written by the check-in state machine.
const (
	ReasonCheckin     = "完成簽到"
	ReasonNoRecording = "未錄音扣分"
)

// PointsHistory is one append-only signed adjustment of a student's balance.
type PointsHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StudentID    uint      `gorm:"not null;index;index:idx_points_student_date_reason" json:"student_id"`
	PointsChange int       `gorm:"not null" json:"points_change"`
	Reason       string    `gorm:"size:255;not null;index:idx_points_student_date_reason" json:"reason"`
	AdjustedBy   *uint     `json:"adjusted_by"`
	Date         string    `gorm:"size:10;not null;index;index:idx_points_student_date_reason" json:"date"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`

	AdjustedByName string `gorm:"->;-:migration" json:"adjusted_by_name,omitempty"`
}

// TableName overrides gorm's pluralized default.
func (PointsHistory) TableName() string { return "points_history" }
