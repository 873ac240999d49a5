package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bible-memorize/server/models"
)

func TestApprove_IsIdempotent(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)
	e.record(t, student.ID, e.at(11, 8, 0))

	first, err := e.svc.Approve(ctx, teacher, student.ID, "2024-03-11")
	require.NoError(t, err)
	assert.True(t, first.Approved)
	assert.True(t, first.AutoCheckedIn)
	assert.Equal(t, 1, first.PointsAwarded)

	second, err := e.svc.Approve(ctx, teacher, student.ID, "2024-03-11")
	require.NoError(t, err)
	assert.False(t, second.Approved)
	assert.True(t, second.AlreadyApproved)
	assert.Zero(t, second.PointsAwarded)

	assert.EqualValues(t, 1, e.count(t, &models.Approval{}, "student_id = ?", student.ID))
	assert.EqualValues(t, 1, e.count(t, &models.Checkin{}, "user_id = ?", student.ID))
	assert.EqualValues(t, 1, e.count(t, &models.PointsHistory{}, "student_id = ? AND reason = ?", student.ID, models.ReasonCheckin))
	assert.Equal(t, 1, e.balance(t, student.ID))
	assert.Equal(t, 1, e.obs.approved)
}

func TestApprove_WithoutRecordingWritesNothing(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	parent := e.user(t, "parent", models.RoleParent)
	student := e.user(t, "student", models.RoleStudent)
	e.record(t, student.ID, e.at(10, 8, 0))

	_, err := e.svc.Approve(ctx, parent, student.ID, "2024-03-11")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)

	assert.Zero(t, e.count(t, &models.Approval{}, "student_id = ?", student.ID))
	assert.Zero(t, e.count(t, &models.Checkin{}, "user_id = ?", student.ID))
	assert.Zero(t, e.count(t, &models.PointsHistory{}, "student_id = ?", student.ID))
	assert.Zero(t, e.balance(t, student.ID))
}

func TestApprove_RoleGate(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	student := e.user(t, "student", models.RoleStudent)
	other := e.user(t, "other", models.RoleStudent)
	e.record(t, other.ID, e.at(11, 8, 0))

	_, err := e.svc.Approve(ctx, student, other.ID, "2024-03-11")
	assert.ErrorIs(t, err, ErrPermission)

	_, err = e.svc.Approve(ctx, Principal{ID: 99, Role: models.RoleAdmin}, other.ID, "11/03/2024")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.Approve(ctx, Principal{ID: 99, Role: models.RoleAdmin}, 4242, "2024-03-11")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprove_BucketsByLocalDate(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)

	// 20:30 UTC on the 10th is 04:30 on the 11th in Taipei
	e.record(t, student.ID, time.Date(2024, time.March, 10, 20, 30, 0, 0, time.UTC))

	_, err := e.svc.Approve(ctx, teacher, student.ID, "2024-03-10")
	assert.ErrorIs(t, err, ErrPrecondition)

	res, err := e.svc.Approve(ctx, teacher, student.ID, "2024-03-11")
	require.NoError(t, err)
	assert.True(t, res.Approved)
}

func TestApprove_PrunesToLatestRecording(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)
	early := e.record(t, student.ID, e.at(11, 7, 0))
	late := e.record(t, student.ID, e.at(11, 19, 0))
	yesterday := e.record(t, student.ID, e.at(10, 19, 0))

	res, err := e.svc.Approve(ctx, teacher, student.ID, "2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)

	recs, err := e.store.RecordingsByUser(ctx, student.ID)
	require.NoError(t, err)
	day := RecordingsOn(recs, "2024-03-11", e.loc)
	require.Len(t, day, 1)
	assert.Equal(t, late.ID, day[0].ID)
	assert.Len(t, RecordingsOn(recs, "2024-03-10", e.loc), 1)

	assert.False(t, e.blobs.has(early.Filename))
	assert.True(t, e.blobs.has(late.Filename))
	assert.True(t, e.blobs.has(yesterday.Filename))
}

func TestApprove_BlobDeleteFailureDoesNotUndoCheckin(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)
	e.record(t, student.ID, e.at(11, 7, 0))
	e.record(t, student.ID, e.at(11, 8, 0))
	e.blobs.failDelete = true

	res, err := e.svc.Approve(ctx, teacher, student.ID, "2024-03-11")
	require.NoError(t, err)
	assert.True(t, res.AutoCheckedIn)
	assert.Equal(t, 1, res.Pruned)
	assert.EqualValues(t, 1, e.count(t, &models.Recording{}, "user_id = ?", student.ID))
	assert.EqualValues(t, 1, e.count(t, &models.Checkin{}, "user_id = ?", student.ID))
}

func TestApprove_ConcurrentDuplicates(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	parent := e.user(t, "parent", models.RoleParent)
	student := e.user(t, "student", models.RoleStudent)
	e.record(t, student.ID, e.at(11, 8, 0))

	var wg sync.WaitGroup
	results := make([]ApproveResult, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := teacher
			if i%2 == 1 {
				actor = parent
			}
			results[i], errs[i] = e.svc.Approve(ctx, actor, student.ID, "2024-03-11")
		}(i)
	}
	wg.Wait()

	approved := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Approved {
			approved++
		} else {
			assert.True(t, results[i].AlreadyApproved)
		}
	}
	assert.Equal(t, 1, approved)
	assert.EqualValues(t, 1, e.count(t, &models.Approval{}, "student_id = ?", student.ID))
	assert.Equal(t, 1, e.balance(t, student.ID))
}

func TestReject_PurgesOnlyThatDay(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	admin := e.user(t, "admin", models.RoleAdmin)
	student := e.user(t, "student", models.RoleStudent)
	var same []*models.Recording
	for _, h := range []int{6, 12, 18} {
		same = append(same, e.record(t, student.ID, e.at(11, h, 0)))
	}
	other := e.record(t, student.ID, e.at(12, 6, 0))

	res, err := e.svc.Reject(ctx, admin, student.ID, "2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deleted)

	recs, err := e.store.RecordingsByUser(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, other.ID, recs[0].ID)
	for _, r := range same {
		assert.False(t, e.blobs.has(r.Filename))
	}

	again, err := e.svc.Reject(ctx, admin, student.ID, "2024-03-11")
	require.NoError(t, err)
	assert.Zero(t, again.Deleted)

	_, err = e.svc.Reject(ctx, student, student.ID, "2024-03-12")
	assert.ErrorIs(t, err, ErrPermission)
}

func TestSelfCheckin_StaffRecordingRule(t *testing.T) {
	ctx := context.Background()

	t.Run("required", func(t *testing.T) {
		e := newTestEnv(t, defaultOptions())
		teacher := e.user(t, "teacher", models.RoleTeacher)

		_, err := e.svc.SelfCheckin(ctx, teacher, "2024-03-11")
		assert.ErrorIs(t, err, ErrPrecondition)

		e.record(t, teacher.ID, e.at(11, 9, 0))
		res, err := e.svc.SelfCheckin(ctx, teacher, "2024-03-11")
		require.NoError(t, err)
		assert.True(t, res.CheckedIn)
		assert.Zero(t, res.PointsAwarded)

		res, err = e.svc.SelfCheckin(ctx, teacher, "2024-03-11")
		require.NoError(t, err)
		assert.True(t, res.AlreadyCheckedIn)
		assert.Zero(t, e.count(t, &models.PointsHistory{}, "student_id = ?", teacher.ID))
	})

	t.Run("waived", func(t *testing.T) {
		e := newTestEnv(t, Options{SelfCheckinRequiresRecording: false, AllowStudentSelfCheckin: true})
		parent := e.user(t, "parent", models.RoleParent)

		res, err := e.svc.SelfCheckin(ctx, parent, "")
		require.NoError(t, err)
		assert.True(t, res.CheckedIn)
		dates, err := e.svc.AllCheckins(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-03-11"}, dates)
	})
}

func TestSelfCheckin_Student(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, Options{SelfCheckinRequiresRecording: false, AllowStudentSelfCheckin: true})
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)

	// students always need a recording, whatever the staff rule says
	_, err := e.svc.SelfCheckin(ctx, student, "2024-03-11")
	assert.ErrorIs(t, err, ErrPrecondition)

	e.record(t, student.ID, e.at(11, 9, 0))
	_, err = e.svc.SelfCheckin(ctx, student, "2024-03-11")
	assert.ErrorIs(t, err, ErrPermission)
	assert.Zero(t, e.count(t, &models.Checkin{}, "user_id = ?", student.ID))

	_, err = e.svc.Approve(ctx, teacher, student.ID, "2024-03-11")
	require.NoError(t, err)

	res, err := e.svc.SelfCheckin(ctx, student, "2024-03-11")
	require.NoError(t, err)
	assert.True(t, res.AlreadyCheckedIn)
	assert.Equal(t, 1, e.balance(t, student.ID))
}

func TestSelfCheckin_StudentDisabled(t *testing.T) {
	e := newTestEnv(t, Options{SelfCheckinRequiresRecording: true})
	student := e.user(t, "student", models.RoleStudent)

	_, err := e.svc.SelfCheckin(context.Background(), student, "2024-03-11")
	assert.ErrorIs(t, err, ErrPermission)
}

func TestCheckDailyDeduction(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	student := e.user(t, "student", models.RoleStudent)
	_, err := e.ledger.Adjust(ctx, student.ID, 3, "bonus", nil, "2024-03-01")
	require.NoError(t, err)

	first, err := e.svc.CheckDailyDeduction(ctx, student, "2024-03-11")
	require.NoError(t, err)
	assert.True(t, first.Deducted)
	require.NotNil(t, first.Adjustment)
	assert.Equal(t, 3, first.Adjustment.OldBalance)
	assert.Equal(t, 2, first.Adjustment.NewBalance)

	second, err := e.svc.CheckDailyDeduction(ctx, student, "2024-03-11")
	require.NoError(t, err)
	assert.False(t, second.Deducted)
	assert.Equal(t, 2, e.balance(t, student.ID))
	assert.EqualValues(t, 1, e.count(t, &models.PointsHistory{}, "student_id = ? AND reason = ?", student.ID, models.ReasonNoRecording))

	e.record(t, student.ID, e.at(12, 9, 0))
	withRec, err := e.svc.CheckDailyDeduction(ctx, student, "2024-03-12")
	require.NoError(t, err)
	assert.False(t, withRec.Deducted)
	assert.True(t, withRec.HasRecording)

	teacher := e.user(t, "teacher", models.RoleTeacher)
	_, err = e.svc.CheckDailyDeduction(ctx, teacher, "2024-03-11")
	assert.ErrorIs(t, err, ErrPermission)
}

func TestCheckDailyDeduction_ClampsAtZero(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	student := e.user(t, "student", models.RoleStudent)

	res, err := e.svc.CheckDailyDeduction(context.Background(), student, "")
	require.NoError(t, err)
	assert.True(t, res.Deducted)
	assert.Equal(t, 0, res.Adjustment.NewBalance)
	assert.Equal(t, -1, res.Adjustment.Delta)
	assert.Zero(t, e.balance(t, student.ID))
}

func TestQueries(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)
	other := e.user(t, "other", models.RoleStudent)
	e.record(t, student.ID, e.at(4, 9, 0))
	e.record(t, student.ID, e.at(11, 9, 0))
	e.record(t, other.ID, e.at(11, 10, 0))

	for _, d := range []string{"2024-03-04", "2024-03-11"} {
		_, err := e.svc.Approve(ctx, teacher, student.ID, d)
		require.NoError(t, err)
	}

	week, err := e.svc.QueryCheckins(ctx, student.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2024, week.Year)
	assert.Equal(t, 11, week.Week)
	assert.Equal(t, "2024-03-11", week.Days[0])
	assert.Equal(t, []string{"2024-03-11"}, week.Dates)

	week, err = e.svc.QueryCheckins(ctx, student.ID, 2024, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-04"}, week.Dates)

	_, err = e.svc.QueryCheckins(ctx, student.ID, 2024, 53)
	assert.ErrorIs(t, err, ErrValidation)

	all, err := e.svc.AllCheckins(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-04", "2024-03-11"}, all)

	ok, err := e.svc.QueryApproval(ctx, student, student.ID, "2024-03-11")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = e.svc.QueryApproval(ctx, other, student.ID, "2024-03-11")
	assert.ErrorIs(t, err, ErrPermission)

	approvals, err := e.svc.Approvals(ctx, teacher, student.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 2)
	assert.Equal(t, "2024-03-11", approvals[0].Date)
	assert.Equal(t, "teacher", approvals[0].ApproverName)

	summary, err := e.svc.TodaySummary(ctx, teacher)
	require.NoError(t, err)
	byName := map[string]DaySummary{}
	for _, s := range summary {
		byName[s.Name] = s
	}
	assert.True(t, byName["student"].HasCheckedInToday)
	assert.True(t, byName["student"].Approved)
	assert.Len(t, byName["student"].TodaysRecordings, 1)
	assert.False(t, byName["other"].HasCheckedInToday)
	assert.Len(t, byName["other"].TodaysRecordings, 1)
	assert.Empty(t, byName["teacher"].TodaysRecordings)

	_, err = e.svc.TodaySummary(ctx, student)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestRecordings_ListAndDelete(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	admin := e.user(t, "admin", models.RoleAdmin)
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)
	other := e.user(t, "other", models.RoleStudent)
	mine := e.record(t, student.ID, e.at(11, 9, 0))
	theirs := e.record(t, other.ID, e.at(11, 10, 0))

	list, err := e.svc.ListRecordings(ctx, student, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "student", list[0].UserName)

	_, err = e.svc.ListRecordings(ctx, student, other.ID)
	assert.ErrorIs(t, err, ErrPermission)

	list, err = e.svc.ListRecordings(ctx, teacher, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	assert.ErrorIs(t, e.svc.DeleteRecording(ctx, teacher, mine.ID), ErrPermission)
	assert.ErrorIs(t, e.svc.DeleteRecording(ctx, student, theirs.ID), ErrPermission)
	require.NoError(t, e.svc.DeleteRecording(ctx, student, mine.ID))
	require.NoError(t, e.svc.DeleteRecording(ctx, admin, theirs.ID))
	assert.ErrorIs(t, e.svc.DeleteRecording(ctx, admin, theirs.ID), ErrNotFound)
	assert.False(t, e.blobs.has(mine.Filename))

	_, err = e.svc.SubmitRecording(ctx, student.ID, nil, ".webm")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAudio(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	student := e.user(t, "student", models.RoleStudent)
	rec := e.record(t, student.ID, e.at(11, 9, 0))

	data, err := e.svc.Audio(ctx, rec.Filename)
	require.NoError(t, err)
	assert.Equal(t, []byte("webm"), data)

	_, err = e.svc.Audio(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.svc.Audio(ctx, "missing.webm")
	assert.ErrorIs(t, err, ErrNotFound)
}
