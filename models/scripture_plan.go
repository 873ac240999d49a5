package models

import "time"

// ScripturePlan holds the seven daily memorization segments of one ISO week.
type ScripturePlan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Year      int       `gorm:"not null;uniqueIndex:idx_plans_year_week" json:"year"`
	Week      int       `gorm:"not null;uniqueIndex:idx_plans_year_week" json:"week"`
	Day1Text  string    `gorm:"type:text" json:"-"`
	Day2Text  string    `gorm:"type:text" json:"-"`
	Day3Text  string    `gorm:"type:text" json:"-"`
	Day4Text  string    `gorm:"type:text" json:"-"`
	Day5Text  string    `gorm:"type:text" json:"-"`
	Day6Text  string    `gorm:"type:text" json:"-"`
	Day7Text  string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Segments returns the day texts Monday first.
func (p ScripturePlan) Segments() []string {
	return []string{p.Day1Text, p.Day2Text, p.Day3Text, p.Day4Text, p.Day5Text, p.Day6Text, p.Day7Text}
}

// SetSegments assigns the first seven entries of segs; missing entries become empty.
func (p *ScripturePlan) SetSegments(segs []string) {
	get := func(i int) string {
		if i < len(segs) {
			return segs[i]
		}
		return ""
	}
	p.Day1Text, p.Day2Text, p.Day3Text = get(0), get(1), get(2)
	p.Day4Text, p.Day5Text, p.Day6Text = get(3), get(4), get(5)
	p.Day7Text = get(6)
}
