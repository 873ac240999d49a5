package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bible-memorize/server/blob"
	"github.com/bible-memorize/server/calendar"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/store"
)

// Observer receives state machine events, e.g. for metrics.
type Observer interface {
	Approved()
	Rejected(deleted int)
	CheckedIn(role models.Role)
	Deducted()
	Pruned(deleted int)
}

type nopObserver struct{}

func (nopObserver) Approved()             {}
func (nopObserver) Rejected(int)          {}
func (nopObserver) CheckedIn(models.Role) {}
func (nopObserver) Deducted()             {}
func (nopObserver) Pruned(int)            {}

// Options are the check-in rules that differ between deployments.
type Options struct {
	// SelfCheckinRequiresRecording makes non-students record before a
	// self check-in. Students always need a recording and an approval.
	SelfCheckinRequiresRecording bool
	// AllowStudentSelfCheckin lets students call SelfCheckin at all.
	AllowStudentSelfCheckin bool
}

// CheckinDeps wires a CheckinService. Store and Ledger are required.
type CheckinDeps struct {
	Store     *store.Store
	Blobs     blob.Store
	Ledger    *Ledger
	Retention *Retention
	Locker    Locker
	Clock     Clock
	Location  *time.Location
	Logger    *zap.Logger
	Observer  Observer
	Options   Options
}

// CheckinService decides, per (user, calendar day), whether a check-in may
// happen, performs it once and credits the day's point once.
type CheckinService struct {
	store     *store.Store
	blobs     blob.Store
	ledger    *Ledger
	retention *Retention
	locker    Locker
	clock     Clock
	loc       *time.Location
	log       *zap.Logger
	obs       Observer
	opts      Options
}

func NewCheckinService(d CheckinDeps) *CheckinService {
	s := &CheckinService{
		store:     d.Store,
		blobs:     d.Blobs,
		ledger:    d.Ledger,
		retention: d.Retention,
		locker:    d.Locker,
		clock:     d.Clock,
		loc:       d.Location,
		log:       d.Logger,
		obs:       d.Observer,
		opts:      d.Options,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.clock == nil {
		s.clock = SystemClock{Location: s.loc}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.locker == nil {
		s.locker = NewKeyedMutex()
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	if s.ledger == nil {
		s.ledger = NewLedger(s.store, s.clock, s.loc)
	}
	if s.retention == nil {
		s.retention = NewRetention(s.store, s.blobs, s.loc, s.log)
	}
	return s
}

// Location is the zone used for local-date buckets.
func (s *CheckinService) Location() *time.Location { return s.loc }

// Today is the current local date key.
func (s *CheckinService) Today() string {
	return calendar.LocalDateKey(s.clock.Now().In(s.loc))
}

// ApproveResult is the outcome of Approve. AlreadyApproved is a success.
type ApproveResult struct {
	Approved         bool `json:"ok"`
	AlreadyApproved  bool `json:"alreadyApproved"`
	AutoCheckedIn    bool `json:"autoCheckedIn"`
	AlreadyCheckedIn bool `json:"alreadyCheckedIn"`
	PointsAwarded    int  `json:"pointsAwarded"`
	Pruned           int  `json:"pruned"`
}

// CheckinResult is the outcome of SelfCheckin.
type CheckinResult struct {
	CheckedIn        bool `json:"ok"`
	AlreadyCheckedIn bool `json:"alreadyCheckedIn"`
	PointsAwarded    int  `json:"pointsAwarded"`
	Pruned           int  `json:"pruned"`
}

// RejectResult is the outcome of Reject.
type RejectResult struct {
	Deleted int `json:"deleted"`
}

// DeductionResult is the outcome of CheckDailyDeduction.
type DeductionResult struct {
	Deducted     bool        `json:"deducted"`
	HasRecording bool        `json:"hasRecording"`
	Adjustment   *Adjustment `json:"adjustment,omitempty"`
}

// SubmitRecording stores the audio and its metadata row, stamped with the
// server clock. It is never gated.
func (s *CheckinService) SubmitRecording(ctx context.Context, userID uint, data []byte, ext string) (*models.Recording, error) {
	if userID == 0 {
		return nil, validationf("user is required")
	}
	if len(data) == 0 {
		return nil, validationf("recording is empty")
	}
	if s.blobs == nil {
		return nil, storageErr("store audio", errors.New("no blob store configured"))
	}
	ref, err := s.blobs.Put(ctx, data, ext)
	if err != nil {
		return nil, storageErr("store audio", err)
	}
	rec := &models.Recording{
		UserID:    userID,
		Filename:  ref,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.CreateRecording(ctx, rec); err != nil {
		s.retention.DeleteBlob(ctx, userID, ref)
		return nil, storageErr("save recording", err)
	}
	return rec, nil
}

// Approve certifies studentID's recording on date, checks the student in
// and credits the day's point once.
func (s *CheckinService) Approve(ctx context.Context, actor Principal, studentID uint, date string) (ApproveResult, error) {
	if studentID == 0 || date == "" {
		return ApproveResult{}, validationf("studentId and date are required")
	}
	if !calendar.ValidDateKey(date) {
		return ApproveResult{}, validationf("invalid date %q", date)
	}
	if !actor.Role.Privileged() {
		return ApproveResult{}, permissionf("only admins, teachers and parents can approve students")
	}
	if _, err := requireStudent(ctx, s.store, studentID); err != nil {
		return ApproveResult{}, err
	}

	unlock, err := s.locker.Lock(ctx, dayKey(studentID, date))
	if err != nil {
		return ApproveResult{}, storageErr("lock day", err)
	}
	defer unlock()

	var res ApproveResult
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		approved, err := tx.HasApproval(ctx, studentID, date)
		if err != nil {
			return err
		}
		if approved {
			res.AlreadyApproved = true
			return nil
		}

		recs, err := tx.RecordingsByUser(ctx, studentID)
		if err != nil {
			return err
		}
		if len(RecordingsOn(recs, date, s.loc)) == 0 {
			return preconditionf("student %d has no recording on %s", studentID, date)
		}

		inserted, err := tx.InsertApproval(ctx, studentID, actor.ID, date)
		if err != nil {
			return err
		}
		if !inserted {
			res.AlreadyApproved = true
			return nil
		}
		res.Approved = true

		checkedIn, err := tx.InsertCheckin(ctx, studentID, date)
		if err != nil {
			return err
		}
		res.AutoCheckedIn = checkedIn
		res.AlreadyCheckedIn = !checkedIn

		credited, err := s.creditOnce(ctx, tx, studentID, &actor.ID, date)
		if err != nil {
			return err
		}
		res.PointsAwarded = credited
		return nil
	})
	if err != nil {
		return ApproveResult{}, storageErr("approve", err)
	}
	if !res.Approved {
		return res, nil
	}

	s.obs.Approved()
	if res.AutoCheckedIn {
		s.obs.CheckedIn(models.RoleStudent)
	}
	if res.PointsAwarded != 0 {
		s.ledger.notify()
	}
	res.Pruned = s.prune(ctx, studentID, date)
	return res, nil
}

// Reject deletes every recording of studentID on date so the student has
// to record again. Approvals and check-ins are left alone.
func (s *CheckinService) Reject(ctx context.Context, actor Principal, studentID uint, date string) (RejectResult, error) {
	if studentID == 0 || date == "" {
		return RejectResult{}, validationf("studentId and date are required")
	}
	if !calendar.ValidDateKey(date) {
		return RejectResult{}, validationf("invalid date %q", date)
	}
	if !actor.Role.Privileged() {
		return RejectResult{}, permissionf("only admins, teachers and parents can reject recordings")
	}

	unlock, err := s.locker.Lock(ctx, dayKey(studentID, date))
	if err != nil {
		return RejectResult{}, storageErr("lock day", err)
	}
	defer unlock()

	n, err := s.retention.Purge(ctx, studentID, date)
	if err != nil {
		return RejectResult{}, err
	}
	s.obs.Rejected(n)
	return RejectResult{Deleted: n}, nil
}

// SelfCheckin checks actor in for date. Students need an approval for that
// date; everyone needs a same-day recording unless the deployment waives it
// for non-students.
func (s *CheckinService) SelfCheckin(ctx context.Context, actor Principal, date string) (CheckinResult, error) {
	if date == "" {
		date = s.Today()
	}
	if !calendar.ValidDateKey(date) {
		return CheckinResult{}, validationf("invalid date %q", date)
	}
	student := actor.Role == models.RoleStudent
	if student && !s.opts.AllowStudentSelfCheckin {
		return CheckinResult{}, permissionf("students are checked in by approval")
	}

	unlock, err := s.locker.Lock(ctx, dayKey(actor.ID, date))
	if err != nil {
		return CheckinResult{}, storageErr("lock day", err)
	}
	defer unlock()

	var res CheckinResult
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		done, err := tx.HasCheckin(ctx, actor.ID, date)
		if err != nil {
			return err
		}
		if done {
			res.AlreadyCheckedIn = true
			return nil
		}

		if student || s.opts.SelfCheckinRequiresRecording {
			recs, err := tx.RecordingsByUser(ctx, actor.ID)
			if err != nil {
				return err
			}
			if len(RecordingsOn(recs, date, s.loc)) == 0 {
				return preconditionf("no recording on %s", date)
			}
		}
		if student {
			approved, err := tx.HasApproval(ctx, actor.ID, date)
			if err != nil {
				return err
			}
			if !approved {
				return permissionf("students must be approved by a teacher or parent before checking in")
			}
		}

		inserted, err := tx.InsertCheckin(ctx, actor.ID, date)
		if err != nil {
			return err
		}
		if !inserted {
			res.AlreadyCheckedIn = true
			return nil
		}
		res.CheckedIn = true

		if student {
			credited, err := s.creditOnce(ctx, tx, actor.ID, nil, date)
			if err != nil {
				return err
			}
			res.PointsAwarded = credited
		}
		return nil
	})
	if err != nil {
		return CheckinResult{}, storageErr("check in", err)
	}
	if !res.CheckedIn {
		return res, nil
	}

	s.obs.CheckedIn(actor.Role)
	if res.PointsAwarded != 0 {
		s.ledger.notify()
	}
	res.Pruned = s.prune(ctx, actor.ID, date)
	return res, nil
}

// CheckDailyDeduction takes one point from a student with no recording on
// date, at most once per date.
func (s *CheckinService) CheckDailyDeduction(ctx context.Context, actor Principal, date string) (DeductionResult, error) {
	if actor.Role != models.RoleStudent {
		return DeductionResult{}, permissionf("only students can use the daily check")
	}
	if date == "" {
		date = s.Today()
	}
	if !calendar.ValidDateKey(date) {
		return DeductionResult{}, validationf("invalid date %q", date)
	}

	unlock, err := s.locker.Lock(ctx, dayKey(actor.ID, date))
	if err != nil {
		return DeductionResult{}, storageErr("lock day", err)
	}
	defer unlock()

	var res DeductionResult
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		recs, err := tx.RecordingsByUser(ctx, actor.ID)
		if err != nil {
			return err
		}
		res.HasRecording = len(RecordingsOn(recs, date, s.loc)) > 0
		if res.HasRecording {
			return nil
		}
		already, err := tx.HasReason(ctx, actor.ID, date, models.ReasonNoRecording)
		if err != nil || already {
			return err
		}
		adj, err := adjustTx(ctx, tx, actor.ID, -1, models.ReasonNoRecording, nil, date)
		if err != nil {
			return err
		}
		res.Deducted = true
		res.Adjustment = &adj
		return nil
	})
	if err != nil {
		return DeductionResult{}, storageErr("daily deduction", err)
	}
	if res.Deducted {
		s.obs.Deducted()
		s.ledger.notify()
	}
	return res, nil
}

// creditOnce adds the check-in point unless the day already has one.
func (s *CheckinService) creditOnce(ctx context.Context, tx *store.Store, studentID uint, by *uint, date string) (int, error) {
	already, err := tx.HasReason(ctx, studentID, date, models.ReasonCheckin)
	if err != nil || already {
		return 0, err
	}
	if _, err := adjustTx(ctx, tx, studentID, 1, models.ReasonCheckin, by, date); err != nil {
		return 0, err
	}
	return 1, nil
}

// prune runs after commit. Its failures never undo the check-in.
func (s *CheckinService) prune(ctx context.Context, userID uint, date string) int {
	n, err := s.retention.Prune(ctx, userID, date)
	if err != nil {
		s.log.Warn("retention prune failed",
			zap.Uint("user_id", userID),
			zap.String("date", date),
			zap.Error(err))
		return 0
	}
	if n > 0 {
		s.obs.Pruned(n)
	}
	return n
}
