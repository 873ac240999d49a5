package store

import (
	"context"

	"github.com/bible-memorize/server/models"
)

// RecordingView is a recording joined with its owner's name.
type RecordingView struct {
	models.Recording
	UserName string `json:"user_name"`
}

func (s *Store) CreateRecording(ctx context.Context, r *models.Recording) error {
	return s.with(ctx).Create(r).Error
}

func (s *Store) RecordingByID(ctx context.Context, id uint) (*models.Recording, error) {
	var r models.Recording
	if err := s.with(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// RecordingsByUser returns all of a user's recordings, oldest first.
func (s *Store) RecordingsByUser(ctx context.Context, userID uint) ([]models.Recording, error) {
	var out []models.Recording
	err := s.with(ctx).Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").Find(&out).Error
	return out, err
}

// AllRecordings returns every recording, oldest first.
func (s *Store) AllRecordings(ctx context.Context) ([]models.Recording, error) {
	var out []models.Recording
	err := s.with(ctx).Order("created_at ASC").Order("id ASC").Find(&out).Error
	return out, err
}

// ListRecordings returns recordings newest first with owner names. A zero
// userID lists everyone.
func (s *Store) ListRecordings(ctx context.Context, userID uint) ([]RecordingView, error) {
	var out []RecordingView
	q := s.with(ctx).Table("recordings").
		Select("recordings.*, users.name AS user_name").
		Joins("LEFT JOIN users ON users.id = recordings.user_id")
	if userID != 0 {
		q = q.Where("recordings.user_id = ?", userID)
	}
	err := q.Order("recordings.created_at DESC").Order("recordings.id DESC").Scan(&out).Error
	return out, err
}

// DeleteRecordings removes the rows with the given ids.
func (s *Store) DeleteRecordings(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.with(ctx).Where("id IN ?", ids).Delete(&models.Recording{})
	return res.RowsAffected, res.Error
}
