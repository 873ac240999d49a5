package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bible-memorize/server/blob"
	"github.com/bible-memorize/server/calendar"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/store"
)

// Retention compacts a day's recordings: to one after a check-in, to none
// after a rejection.
type Retention struct {
	store *store.Store
	blobs blob.Store
	loc   *time.Location
	log   *zap.Logger
}

func NewRetention(st *store.Store, blobs blob.Store, loc *time.Location, log *zap.Logger) *Retention {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retention{store: st, blobs: blobs, loc: loc, log: log}
}

// Prune keeps only the most recently created recording of userID on date
// and returns how many were removed. Callers treat its error as advisory.
func (r *Retention) Prune(ctx context.Context, userID uint, date string) (int, error) {
	day, err := r.recordingsOn(ctx, r.store, userID, date)
	if err != nil {
		return 0, err
	}
	if len(day) <= 1 {
		return 0, nil
	}
	// oldest first, so the last one survives
	return r.remove(ctx, userID, date, day[:len(day)-1])
}

// Purge removes every recording of userID on date.
func (r *Retention) Purge(ctx context.Context, userID uint, date string) (int, error) {
	day, err := r.recordingsOn(ctx, r.store, userID, date)
	if err != nil {
		return 0, err
	}
	return r.remove(ctx, userID, date, day)
}

// DeleteBlob removes ref, logging instead of failing.
func (r *Retention) DeleteBlob(ctx context.Context, userID uint, ref string) {
	if r.blobs == nil || ref == "" {
		return
	}
	if err := r.blobs.Delete(ctx, ref); err != nil {
		r.log.Warn("blob delete failed",
			zap.Uint("user_id", userID),
			zap.String("ref", ref),
			zap.Error(err))
	}
}

func (r *Retention) remove(ctx context.Context, userID uint, date string, recs []models.Recording) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	ids := make([]uint, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	n, err := r.store.DeleteRecordings(ctx, ids)
	if err != nil {
		return 0, storageErr("delete recordings", err)
	}
	for _, rec := range recs {
		if r.blobs == nil {
			break
		}
		if err := r.blobs.Delete(ctx, rec.Filename); err != nil {
			r.log.Warn("blob delete failed",
				zap.Uint("user_id", userID),
				zap.String("date", date),
				zap.String("ref", rec.Filename),
				zap.Error(err))
		}
	}
	return int(n), nil
}

func (r *Retention) recordingsOn(ctx context.Context, st *store.Store, userID uint, date string) ([]models.Recording, error) {
	all, err := st.RecordingsByUser(ctx, userID)
	if err != nil {
		return nil, storageErr("load recordings", err)
	}
	return RecordingsOn(all, date, r.loc), nil
}

// RecordingsOn keeps the recordings whose creation time falls on date in
// loc, oldest first.
func RecordingsOn(recs []models.Recording, date string, loc *time.Location) []models.Recording {
	var out []models.Recording
	for _, rec := range recs {
		if calendar.LocalDateKey(rec.CreatedAt.In(loc)) == date {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
