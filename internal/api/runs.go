// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"sync"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const maxTrackedRuns = 50

type runState struct {
	done   chan struct{}
	result types.RunResult
}

// runTracker remembers the most recent background runs so their results
// can be fetched after the triggering request returned.
type runTracker struct {
	mu    sync.Mutex
	max   int
	order []string
	runs  map[string]*runState
}

func newRunTracker(max int) *runTracker {
	return &runTracker{max: max, runs: make(map[string]*runState)}
}

func (t *runTracker) start(id string) *runState {
	st := &runState{
		done:   make(chan struct{}),
		result: types.RunResult{ID: id, Status: types.RunRunning},
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[id] = st
	t.order = append(t.order, id)
	for len(t.order) > t.max {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.runs, oldest)
	}
	return st
}

func (t *runTracker) finish(st *runState, res types.RunResult) {
	t.mu.Lock()
	st.result = res
	t.mu.Unlock()
	close(st.done)
}

func (t *runTracker) get(id string) (*runState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.runs[id]
	return st, ok
}

func (t *runTracker) result(st *runState) types.RunResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return st.result
}
