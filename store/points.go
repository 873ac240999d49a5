package store

import (
	"context"

	"github.com/bible-memorize/server/models"
)

// AppendPoints inserts one ledger row.
func (s *Store) AppendPoints(ctx context.Context, e *models.PointsHistory) error {
	return s.with(ctx).Create(e).Error
}

// HasReason reports whether a ledger row with reason exists for (studentID, date).
func (s *Store) HasReason(ctx context.Context, studentID uint, date, reason string) (bool, error) {
	var n int64
	err := s.with(ctx).Model(&models.PointsHistory{}).
		Where("student_id = ? AND date = ? AND reason = ?", studentID, date, reason).
		Count(&n).Error
	return n > 0, err
}

// PointsHistory returns the newest entries first with the adjuster's name.
// A non-positive limit returns everything.
func (s *Store) PointsHistory(ctx context.Context, studentID uint, limit int) ([]models.PointsHistory, error) {
	var out []models.PointsHistory
	q := s.with(ctx).Model(&models.PointsHistory{}).
		Select("points_history.*, users.name AS adjusted_by_name").
		Joins("LEFT JOIN users ON users.id = points_history.adjusted_by").
		Where("points_history.student_id = ?", studentID).
		Order("points_history.created_at DESC").Order("points_history.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// SumPoints adds up every delta for studentID.
func (s *Store) SumPoints(ctx context.Context, studentID uint) (int, error) {
	var sum int
	err := s.with(ctx).Model(&models.PointsHistory{}).
		Select("COALESCE(SUM(points_change), 0)").
		Where("student_id = ?", studentID).
		Scan(&sum).Error
	return sum, err
}
