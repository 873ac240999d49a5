package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bible-memorize/server/blob"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/store"
)

// memBlobs is an in-memory blob.Store. failDelete makes every Delete fail.
type memBlobs struct {
	mu         sync.Mutex
	data       map[string][]byte
	failDelete bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte)}
}

func (m *memBlobs) Put(ctx context.Context, data []byte, ext string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := blob.NewRef(ext)
	m.data[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (m *memBlobs) Get(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[ref]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return b, nil
}

func (m *memBlobs) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return errors.New("bucket unavailable")
	}
	delete(m.data, ref)
	return nil
}

func (m *memBlobs) has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[ref]
	return ok
}

type countingObserver struct {
	mu        sync.Mutex
	approved  int
	rejected  int
	checkedIn int
	deducted  int
	pruned    int
}

func (o *countingObserver) Approved()             { o.mu.Lock(); o.approved++; o.mu.Unlock() }
func (o *countingObserver) Rejected(n int)        { o.mu.Lock(); o.rejected += n; o.mu.Unlock() }
func (o *countingObserver) CheckedIn(models.Role) { o.mu.Lock(); o.checkedIn++; o.mu.Unlock() }
func (o *countingObserver) Deducted()             { o.mu.Lock(); o.deducted++; o.mu.Unlock() }
func (o *countingObserver) Pruned(n int)          { o.mu.Lock(); o.pruned += n; o.mu.Unlock() }

type testEnv struct {
	db     *gorm.DB
	store  *store.Store
	blobs  *memBlobs
	clock  *FixedClock
	loc    *time.Location
	ledger *Ledger
	svc    *CheckinService
	obs    *countingObserver
}

// openTestDB returns a private in-memory database with the schema applied.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	db := openTestDB(t)
	st := store.New(db)
	clock := NewFixedClock(time.Date(2024, time.March, 11, 21, 0, 0, 0, loc))
	blobs := newMemBlobs()
	ledger := NewLedger(st, clock, loc)
	obs := &countingObserver{}
	svc := NewCheckinService(CheckinDeps{
		Store:    st,
		Blobs:    blobs,
		Ledger:   ledger,
		Locker:   NewKeyedMutex(),
		Clock:    clock,
		Location: loc,
		Observer: obs,
		Options:  opts,
	})
	return &testEnv{db: db, store: st, blobs: blobs, clock: clock, loc: loc, ledger: ledger, svc: svc, obs: obs}
}

func defaultOptions() Options {
	return Options{SelfCheckinRequiresRecording: true, AllowStudentSelfCheckin: true}
}

func (e *testEnv) user(t *testing.T, name string, role models.Role) Principal {
	t.Helper()
	n, err := e.store.NextNumber(context.Background())
	require.NoError(t, err)
	u := &models.User{Name: name, Number: n, PasswordHash: "x", Role: role}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return Principal{ID: u.ID, Role: role}
}

// record submits a recording stamped at, restoring the clock afterwards.
func (e *testEnv) record(t *testing.T, userID uint, at time.Time) *models.Recording {
	t.Helper()
	prev := e.clock.Now()
	e.clock.Set(at)
	defer e.clock.Set(prev)
	rec, err := e.svc.SubmitRecording(context.Background(), userID, []byte("webm"), ".webm")
	require.NoError(t, err)
	return rec
}

func (e *testEnv) at(day, hour, min int) time.Time {
	return time.Date(2024, time.March, day, hour, min, 0, 0, e.loc)
}

func (e *testEnv) count(t *testing.T, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func (e *testEnv) balance(t *testing.T, id uint) int {
	t.Helper()
	b, err := e.ledger.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return b
}
