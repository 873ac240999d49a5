package models

import "time"

// Recording is one audio submission. CreatedAt is the only field used to
// place a recording on a calendar day.
type Recording struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Filename  string    `gorm:"size:255;not null" json:"filename"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
