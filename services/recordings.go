package services

import (
	"context"
	"errors"

	"github.com/bible-memorize/server/blob"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/store"
)

// ListRecordings returns recordings newest first. Privileged roles see
// everyone, or one user when userID is set; students only see their own.
func (s *CheckinService) ListRecordings(ctx context.Context, actor Principal, userID uint) ([]store.RecordingView, error) {
	if !actor.Role.Privileged() {
		if userID != 0 && userID != actor.ID {
			return nil, permissionf("students can only list their own recordings")
		}
		userID = actor.ID
	}
	out, err := s.store.ListRecordings(ctx, userID)
	if err != nil {
		return nil, storageErr("list recordings", err)
	}
	return out, nil
}

// DeleteRecording lets the owner or an admin remove one recording.
func (s *CheckinService) DeleteRecording(ctx context.Context, actor Principal, id uint) error {
	rec, err := s.store.RecordingByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundf("recording %d not found", id)
	}
	if err != nil {
		return storageErr("load recording", err)
	}
	if actor.Role != models.RoleAdmin && rec.UserID != actor.ID {
		return permissionf("only the owner or an admin can delete a recording")
	}
	if _, err := s.store.DeleteRecordings(ctx, []uint{rec.ID}); err != nil {
		return storageErr("delete recording", err)
	}
	s.retention.DeleteBlob(ctx, rec.UserID, rec.Filename)
	return nil
}

// Audio reads the blob behind ref.
func (s *CheckinService) Audio(ctx context.Context, ref string) ([]byte, error) {
	if s.blobs == nil || !blob.ValidRef(ref) {
		return nil, notFoundf("audio not found")
	}
	data, err := s.blobs.Get(ctx, ref)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, notFoundf("audio not found")
	}
	if err != nil {
		return nil, storageErr("read audio", err)
	}
	return data, nil
}
