package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bible-memorize/server/calendar"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/store"
	"github.com/bible-memorize/server/utils"
)

// Principal is the authenticated caller as supplied by the auth layer.
type Principal struct {
	ID   uint
	Role models.Role
}

// Adjustment reports one balance change.
type Adjustment struct {
	OldBalance int `json:"old_points"`
	NewBalance int `json:"new_points"`
	Delta      int `json:"points_change"`
}

// Ledger keeps each student's balance and the append-only history behind it.
type Ledger struct {
	store *store.Store
	clock Clock
	loc   *time.Location

	afterWrite []func()
}

func NewLedger(st *store.Store, clock Clock, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{store: st, clock: clock, loc: loc}
}

// AfterWrite registers fn to run after every committed ledger write.
func (l *Ledger) AfterWrite(fn func()) {
	l.afterWrite = append(l.afterWrite, fn)
}

func (l *Ledger) notify() {
	for _, fn := range l.afterWrite {
		fn()
	}
}

// GetBalance returns the stored balance, 0 for an unknown student.
func (l *Ledger) GetBalance(ctx context.Context, studentID uint) (int, error) {
	u, err := l.store.UserByID(ctx, studentID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("load balance", err)
	}
	return u.Points, nil
}

// Adjust writes one history row and the clamped balance in one transaction.
func (l *Ledger) Adjust(ctx context.Context, studentID uint, delta int, reason string, approverID *uint, date string) (Adjustment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Adjustment{}, validationf("reason is required")
	}
	if date == "" {
		date = l.today()
	}
	if !calendar.ValidDateKey(date) {
		return Adjustment{}, validationf("invalid date %q", date)
	}

	var adj Adjustment
	err := l.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		adj, err = adjustTx(ctx, tx, studentID, delta, reason, approverID, date)
		return err
	})
	if err != nil {
		return Adjustment{}, storageErr("adjust points", err)
	}
	l.notify()
	return adj, nil
}

// AdjustPoints is the manual adjustment made by a privileged user, dated today.
func (l *Ledger) AdjustPoints(ctx context.Context, actor Principal, studentID uint, delta int, reason string) (Adjustment, error) {
	if studentID == 0 {
		return Adjustment{}, validationf("studentId is required")
	}
	reason = utils.Sanitize(strings.TrimSpace(reason))
	if reason == "" {
		return Adjustment{}, validationf("reason is required")
	}
	if !actor.Role.Privileged() {
		return Adjustment{}, permissionf("only admins, teachers and parents can adjust points")
	}
	if _, err := requireStudent(ctx, l.store, studentID); err != nil {
		return Adjustment{}, err
	}
	by := actor.ID
	return l.Adjust(ctx, studentID, delta, reason, &by, l.today())
}

// HasReason reports whether (studentID, date) already carries a row with reason.
func (l *Ledger) HasReason(ctx context.Context, studentID uint, date, reason string) (bool, error) {
	ok, err := l.store.HasReason(ctx, studentID, date, reason)
	if err != nil {
		return false, storageErr("check points history", err)
	}
	return ok, nil
}

// History returns up to limit entries, most recent first.
func (l *Ledger) History(ctx context.Context, studentID uint, limit int) ([]models.PointsHistory, error) {
	out, err := l.store.PointsHistory(ctx, studentID, limit)
	if err != nil {
		return nil, storageErr("load points history", err)
	}
	return out, nil
}

func (l *Ledger) today() string {
	return calendar.LocalDateKey(l.clock.Now().In(l.loc))
}

// adjustTx is the ledger write shared by Adjust and the check-in state
// machine. tx must be a transaction; the user row stays locked until it ends.
func adjustTx(ctx context.Context, tx *store.Store, studentID uint, delta int, reason string, approverID *uint, date string) (Adjustment, error) {
	u, err := tx.LockUser(ctx, studentID)
	if errors.Is(err, store.ErrNotFound) {
		return Adjustment{}, notFoundf("student %d not found", studentID)
	}
	if err != nil {
		return Adjustment{}, err
	}

	entry := models.PointsHistory{
		StudentID:    studentID,
		PointsChange: delta,
		Reason:       reason,
		AdjustedBy:   approverID,
		Date:         date,
	}
	if err := tx.AppendPoints(ctx, &entry); err != nil {
		return Adjustment{}, err
	}

	next := u.Points + delta
	if next < 0 {
		next = 0
	}
	if err := tx.SetPoints(ctx, studentID, next); err != nil {
		return Adjustment{}, err
	}
	return Adjustment{OldBalance: u.Points, NewBalance: next, Delta: delta}, nil
}

func requireStudent(ctx context.Context, st *store.Store, id uint) (*models.User, error) {
	u, err := st.UserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundf("student %d not found", id)
	}
	if err != nil {
		return nil, storageErr("load student", err)
	}
	if u.Role != models.RoleStudent {
		return nil, preconditionf("user %d is not a student", id)
	}
	return u, nil
}
