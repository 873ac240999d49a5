package services

import (
	"context"
	"time"

	"github.com/bible-memorize/server/models"
)

const (
	OwnHistoryLimit     = 20
	StudentHistoryLimit = 50
)

// Statement is a balance with its most recent history entries.
type Statement struct {
	Points  int                    `json:"points"`
	History []models.PointsHistory `json:"history"`
}

// RankingEntry is one student on the leaderboard. CreatedAt is only shown
// to privileged readers.
type RankingEntry struct {
	ID        uint        `json:"id"`
	Number    string      `json:"number"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	Points    int         `json:"points"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
}

// MyPoints is the calling student's own statement.
func (l *Ledger) MyPoints(ctx context.Context, actor Principal) (Statement, error) {
	if actor.Role != models.RoleStudent {
		return Statement{}, permissionf("only students have their own points")
	}
	return l.statement(ctx, actor.ID, OwnHistoryLimit)
}

// StudentPoints is a student's statement, readable by privileged roles or the student.
func (l *Ledger) StudentPoints(ctx context.Context, actor Principal, studentID uint) (Statement, error) {
	if !canRead(actor, studentID) {
		return Statement{}, permissionf("no access to user %d", studentID)
	}
	return l.statement(ctx, studentID, StudentHistoryLimit)
}

func (l *Ledger) statement(ctx context.Context, studentID uint, limit int) (Statement, error) {
	bal, err := l.GetBalance(ctx, studentID)
	if err != nil {
		return Statement{}, err
	}
	hist, err := l.History(ctx, studentID, limit)
	if err != nil {
		return Statement{}, err
	}
	if hist == nil {
		hist = []models.PointsHistory{}
	}
	return Statement{Points: bal, History: hist}, nil
}

// Ranking lists every student with a balance, highest first, including
// CreatedAt. Use VisibleRanking before returning it to a caller.
func (l *Ledger) Ranking(ctx context.Context) ([]RankingEntry, error) {
	users, err := l.store.Ranking(ctx)
	if err != nil {
		return nil, storageErr("load ranking", err)
	}
	out := make([]RankingEntry, 0, len(users))
	for _, u := range users {
		created := u.CreatedAt
		out = append(out, RankingEntry{
			ID:        u.ID,
			Number:    u.Number,
			Name:      u.Name,
			Role:      u.Role,
			Points:    u.Points,
			CreatedAt: &created,
		})
	}
	return out, nil
}

// VisibleRanking strips CreatedAt for non-privileged readers. entries is not modified.
func VisibleRanking(actor Principal, entries []RankingEntry) []RankingEntry {
	out := make([]RankingEntry, len(entries))
	copy(out, entries)
	if actor.Role.Privileged() {
		return out
	}
	for i := range out {
		out[i].CreatedAt = nil
	}
	return out
}
