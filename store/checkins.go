package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/bible-memorize/server/models"
)

// ApprovalView is an approval joined with the approver's name.
type ApprovalView struct {
	Date         string `json:"date"`
	ApproverID   uint   `json:"approver_id"`
	ApproverName string `json:"approver_name"`
}

// InsertCheckin writes (userID, date) unless it already exists. The unique
// index decides; inserted is false when the row was already there.
func (s *Store) InsertCheckin(ctx context.Context, userID uint, date string) (inserted bool, err error) {
	row := models.Checkin{UserID: userID, Date: date}
	res := s.with(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) HasCheckin(ctx context.Context, userID uint, date string) (bool, error) {
	var n int64
	err := s.with(ctx).Model(&models.Checkin{}).
		Where("user_id = ? AND date = ?", userID, date).Count(&n).Error
	return n > 0, err
}

// CheckinDates returns the user's check-in dates in [from, to], ascending.
// Empty bounds are open.
func (s *Store) CheckinDates(ctx context.Context, userID uint, from, to string) ([]string, error) {
	q := s.with(ctx).Model(&models.Checkin{}).Where("user_id = ?", userID)
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}
	var dates []string
	err := q.Order("date ASC").Pluck("date", &dates).Error
	return dates, err
}

// CheckedInUsers returns the ids of users with a check-in on date.
func (s *Store) CheckedInUsers(ctx context.Context, date string) (map[uint]bool, error) {
	var ids []uint
	if err := s.with(ctx).Model(&models.Checkin{}).Where("date = ?", date).Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// InsertApproval writes the approval unless (studentID, date) exists.
func (s *Store) InsertApproval(ctx context.Context, studentID, approverID uint, date string) (inserted bool, err error) {
	row := models.Approval{StudentID: studentID, ApproverID: approverID, Date: date}
	res := s.with(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) HasApproval(ctx context.Context, studentID uint, date string) (bool, error) {
	var n int64
	err := s.with(ctx).Model(&models.Approval{}).
		Where("student_id = ? AND date = ?", studentID, date).Count(&n).Error
	return n > 0, err
}

// ApprovalsForStudent lists approvals newest first.
func (s *Store) ApprovalsForStudent(ctx context.Context, studentID uint) ([]ApprovalView, error) {
	var out []ApprovalView
	err := s.with(ctx).Table("approvals").
		Select("approvals.date, approvals.approver_id, users.name AS approver_name").
		Joins("LEFT JOIN users ON users.id = approvals.approver_id").
		Where("approvals.student_id = ?", studentID).
		Order("approvals.date DESC").
		Scan(&out).Error
	return out, err
}

// CheckinsBetween returns every check-in in [from, to] keyed by user id.
func (s *Store) CheckinsBetween(ctx context.Context, from, to string) (map[uint][]string, error) {
	var rows []models.Checkin
	err := s.with(ctx).Where("date >= ? AND date <= ?", from, to).
		Order("date ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint][]string)
	for _, r := range rows {
		out[r.UserID] = append(out[r.UserID], r.Date)
	}
	return out, nil
}
