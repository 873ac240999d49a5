package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesOneKey(t *testing.T) {
	l := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, dayKey(7, "2024-03-11"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, l.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	l := NewKeyedMutex()
	ctx := context.Background()

	a, err := l.Lock(ctx, dayKey(1, "2024-03-11"))
	require.NoError(t, err)
	b, err := l.Lock(ctx, dayKey(2, "2024-03-11"))
	require.NoError(t, err)
	assert.Equal(t, 2, l.size())
	a()
	b()
	assert.Zero(t, l.size())
}

func TestErrorKinds(t *testing.T) {
	err := preconditionf("no recording on %s", "2024-03-11")
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, KindPrecondition, KindOf(err))
	assert.Equal(t, "no recording on 2024-03-11", Reason(err))

	wrapped := fmt.Errorf("approve: %w", err)
	assert.ErrorIs(t, wrapped, ErrPrecondition)

	cause := errors.New("disk full")
	serr := storageErr("save recording", cause)
	assert.ErrorIs(t, serr, ErrStorage)
	assert.ErrorIs(t, serr, cause)
	assert.Equal(t, "save recording: disk full", serr.Error())

	// typed errors pass through unchanged
	assert.Same(t, err, storageErr("approve", err))
	assert.Nil(t, storageErr("noop", nil))
	assert.Zero(t, KindOf(cause))
}
