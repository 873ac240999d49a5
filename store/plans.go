package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/bible-memorize/server/models"
)

func (s *Store) PlanByWeek(ctx context.Context, year, week int) (*models.ScripturePlan, error) {
	var p models.ScripturePlan
	if err := s.with(ctx).Where("year = ? AND week = ?", year, week).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListPlans returns plans newest week first.
func (s *Store) ListPlans(ctx context.Context) ([]models.ScripturePlan, error) {
	var out []models.ScripturePlan
	err := s.with(ctx).Order("year DESC").Order("week DESC").Find(&out).Error
	return out, err
}

// UpsertPlan inserts the plan or replaces the texts of the existing (year, week) row.
func (s *Store) UpsertPlan(ctx context.Context, p *models.ScripturePlan) (*models.ScripturePlan, error) {
	err := s.with(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "year"}, {Name: "week"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"day1_text", "day2_text", "day3_text", "day4_text",
			"day5_text", "day6_text", "day7_text", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return nil, err
	}
	return s.PlanByWeek(ctx, p.Year, p.Week)
}
