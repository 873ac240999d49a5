package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bible-memorize/server/models"
)

func TestLedger_SequenceSumsDeltas(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)

	_, err := e.ledger.Adjust(ctx, student.ID, 1, models.ReasonCheckin, &teacher.ID, "2024-03-10")
	require.NoError(t, err)
	_, err = e.ledger.Adjust(ctx, student.ID, -1, models.ReasonNoRecording, nil, "2024-03-11")
	require.NoError(t, err)
	adj, err := e.ledger.AdjustPoints(ctx, teacher, student.ID, 1, "bonus")
	require.NoError(t, err)

	assert.Equal(t, Adjustment{OldBalance: 0, NewBalance: 1, Delta: 1}, adj)
	assert.Equal(t, 1, e.balance(t, student.ID))

	sum, err := e.store.SumPoints(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum)

	history, err := e.ledger.History(ctx, student.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "bonus", history[0].Reason)
	assert.Equal(t, "teacher", history[0].AdjustedByName)
	assert.Equal(t, "2024-03-11", history[0].Date)
	assert.Equal(t, models.ReasonNoRecording, history[1].Reason)
	assert.Empty(t, history[1].AdjustedByName)
}

func TestLedger_ClampsAtZero(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	student := e.user(t, "student", models.RoleStudent)

	adj, err := e.ledger.Adjust(context.Background(), student.ID, -5, "penalty", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, adj.OldBalance)
	assert.Equal(t, 0, adj.NewBalance)
	assert.Equal(t, -5, adj.Delta)
	assert.Equal(t, 0, e.balance(t, student.ID))
}

func TestLedger_Validation(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	teacher := e.user(t, "teacher", models.RoleTeacher)
	student := e.user(t, "student", models.RoleStudent)

	_, err := e.ledger.AdjustPoints(ctx, teacher, student.ID, 2, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.ledger.AdjustPoints(ctx, student, student.ID, 2, "self-service")
	assert.ErrorIs(t, err, ErrPermission)

	_, err = e.ledger.AdjustPoints(ctx, teacher, teacher.ID, 2, "not a student")
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = e.ledger.Adjust(ctx, 9999, 1, "ghost", nil, "2024-03-11")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.ledger.Adjust(ctx, student.ID, 1, "x", nil, "2024-13-01")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, e.count(t, &models.PointsHistory{}, "1 = 1"))
}

func TestLedger_HasReasonAndNotify(t *testing.T) {
	e := newTestEnv(t, defaultOptions())
	ctx := context.Background()
	student := e.user(t, "student", models.RoleStudent)
	calls := 0
	e.ledger.AfterWrite(func() { calls++ })

	ok, err := e.ledger.HasReason(ctx, student.ID, "2024-03-11", models.ReasonCheckin)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.ledger.Adjust(ctx, student.ID, 1, models.ReasonCheckin, nil, "2024-03-11")
	require.NoError(t, err)

	ok, err = e.ledger.HasReason(ctx, student.ID, "2024-03-11", models.ReasonCheckin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)

	b, err := e.ledger.GetBalance(ctx, 12345)
	require.NoError(t, err)
	assert.Zero(t, b)
}
