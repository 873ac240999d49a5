package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bible-memorize/server/export"
	"github.com/bible-memorize/server/models"
)

func TestPoints_Statements(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	amy := e.user(t, "amy", models.RoleStudent)
	ben := e.user(t, "ben", models.RoleStudent)

	for i := 0; i < 25; i++ {
		_, err := e.ledger.Adjust(ctx, amy.ID, 1, "bonus", &teacher.ID, "")
		require.NoError(t, err)
	}

	mine, err := e.ledger.MyPoints(ctx, amy)
	require.NoError(t, err)
	assert.Equal(t, 25, mine.Points)
	assert.Len(t, mine.History, OwnHistoryLimit)

	viaTeacher, err := e.ledger.StudentPoints(ctx, teacher, amy.ID)
	require.NoError(t, err)
	assert.Len(t, viaTeacher.History, 25)

	_, err = e.ledger.StudentPoints(ctx, ben, amy.ID)
	assert.ErrorIs(t, err, ErrPermission)

	empty, err := e.ledger.MyPoints(ctx, ben)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Points)
	assert.NotNil(t, empty.History)

	_, err = e.ledger.MyPoints(ctx, teacher)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestPoints_AdjustSanitizesReason(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	amy := e.user(t, "amy", models.RoleStudent)

	_, err := e.ledger.AdjustPoints(ctx, teacher, amy.ID, 2, "<b>great</b> reading")
	require.NoError(t, err)
	hist, err := e.ledger.History(ctx, amy.ID, 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "great reading", hist[0].Reason)

	_, err = e.ledger.AdjustPoints(ctx, teacher, amy.ID, 2, "<script>x</script>")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPoints_RankingVisibility(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	amy := e.user(t, "amy", models.RoleStudent)
	ben := e.user(t, "ben", models.RoleStudent)
	_, err := e.ledger.Adjust(ctx, ben.ID, 3, "bonus", &teacher.ID, "")
	require.NoError(t, err)

	all, err := e.ledger.Ranking(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ben", all[0].Name)
	assert.Equal(t, 3, all[0].Points)
	assert.Equal(t, "amy", all[1].Name)

	forTeacher := VisibleRanking(teacher, all)
	assert.NotNil(t, forTeacher[0].CreatedAt)

	forStudent := VisibleRanking(amy, all)
	assert.Nil(t, forStudent[0].CreatedAt)
	assert.NotNil(t, all[0].CreatedAt, "input must stay untouched")
}

func TestWeeklyReport(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	admin := e.user(t, "admin", models.RoleAdmin)
	teacher := e.user(t, "teacher", models.RoleTeacher)
	parent := e.user(t, "parent", models.RoleParent)
	amy := e.user(t, "amy", models.RoleStudent)
	e.user(t, "ben", models.RoleStudent)

	e.record(t, amy.ID, e.at(11, 8, 0))
	_, err := e.svc.Approve(ctx, teacher, amy.ID, "2024-03-11")
	require.NoError(t, err)
	_, err = e.store.InsertCheckin(ctx, amy.ID, "2024-03-13")
	require.NoError(t, err)
	_, err = e.store.InsertCheckin(ctx, amy.ID, "2024-03-18") // next week
	require.NoError(t, err)

	rep, err := e.svc.WeeklyReport(ctx, admin, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2024, rep.Year)
	assert.Equal(t, 11, rep.Week)
	assert.Equal(t, "2024-03-11", rep.Dates[0])
	require.Len(t, rep.Students, 2)
	assert.Equal(t, export.StudentRow{
		Name:    "amy",
		Number:  rep.Students[0].Number,
		Points:  1,
		Checked: [7]bool{true, false, true},
	}, rep.Students[0])
	assert.Equal(t, [7]bool{}, rep.Students[1].Checked)

	_, err = e.svc.WeeklyReport(ctx, teacher, 2024, 11)
	require.NoError(t, err)
	_, err = e.svc.WeeklyReport(ctx, parent, 2024, 11)
	assert.ErrorIs(t, err, ErrPermission)
	_, err = e.svc.WeeklyReport(ctx, admin, 2021, 53)
	assert.ErrorIs(t, err, ErrValidation)
}
