// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestAcquireRelease(t *testing.T) {
	r := NewRegistry()

	release, err := r.Acquire("2402.00001", KindScore)
	require.NoError(t, err)
	assert.True(t, r.Busy("2402.00001"))

	_, err = r.Acquire("2402.00001", KindResummarize)
	assert.ErrorIs(t, err, types.ErrAlreadyInProgress)

	other, err := r.Acquire("2402.00002", KindScore)
	require.NoError(t, err, "different ids do not conflict")
	other()

	release()
	assert.False(t, r.Busy("2402.00001"))

	again, err := r.Acquire("2402.00001", KindResummarize)
	require.NoError(t, err)
	defer again()
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := NewRegistry()
	release, err := r.Acquire("a", KindScore)
	require.NoError(t, err)
	release()

	second, err := r.Acquire("a", KindScore)
	require.NoError(t, err)

	// A stale release must not free the new holder's claim.
	release()
	assert.True(t, r.Busy("a"))
	second()
	assert.False(t, r.Busy("a"))
}

func TestAcquireExactlyOneWinner(t *testing.T) {
	r := NewRegistry()
	var (
		wins  atomic.Int32
		lost  atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
		hold  = make(chan struct{})
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			release, err := r.Acquire("same", KindResummarize)
			if err != nil {
				assert.ErrorIs(t, err, types.ErrAlreadyInProgress)
				lost.Add(1)
				return
			}
			defer release()
			wins.Add(1)
			<-hold
		}()
	}
	close(start)
	// Every goroutine attempts before the winner releases.
	require.Eventually(t, func() bool { return wins.Load()+lost.Load() == 50 }, 5*time.Second, time.Millisecond)
	close(hold)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.False(t, r.Busy("same"))
}

func TestInFlight(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	relB, err := r.Acquire("b", KindSummarize)
	require.NoError(t, err)
	relA, err := r.Acquire("a", KindScore)
	require.NoError(t, err)
	defer relA()

	jobs := r.InFlight()
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].PaperID)
	assert.Equal(t, KindSummarize, jobs[0].Kind)
	assert.Equal(t, "a", jobs[1].PaperID)

	relB()
	assert.Len(t, r.InFlight(), 1)
}
