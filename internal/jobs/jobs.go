// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jobs guards against concurrent scoring or summarization of the
// same paper.
package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Kind names the work a job performs.
type Kind string

const (
	KindScore       Kind = "score"
	KindSummarize   Kind = "summarize"
	KindResummarize Kind = "resummarize"
	KindRescore     Kind = "rescore"
	KindAdd         Kind = "add"
)

// Job describes one in-flight job.
type Job struct {
	PaperID string    `json:"paper_id"`
	Kind    Kind      `json:"kind"`
	Started time.Time `json:"started"`
}

// Registry holds at most one in-flight job per paper id. The zero value
// is not usable; call NewRegistry.
type Registry struct {
	mu      sync.Mutex
	running map[string]Job
	now     func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{running: make(map[string]Job), now: time.Now}
}

// Acquire claims id for a job of the given kind. If id already has a job
// in flight it returns types.ErrAlreadyInProgress without waiting. The
// returned release func frees the claim; it is safe to call more than
// once and must be deferred by the caller.
func (r *Registry) Acquire(id string, kind Kind) (release func(), err error) {
	r.mu.Lock()
	if cur, ok := r.running[id]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s %s (running %s): %w", kind, id, cur.Kind, types.ErrAlreadyInProgress)
	}
	r.running[id] = Job{PaperID: id, Kind: kind, Started: r.now()}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.running, id)
			r.mu.Unlock()
		})
	}, nil
}

// Busy reports whether id has a job in flight.
func (r *Registry) Busy(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[id]
	return ok
}

// InFlight returns a snapshot of the running jobs, oldest first.
func (r *Registry) InFlight() []Job {
	r.mu.Lock()
	out := make([]Job, 0, len(r.running))
	for _, j := range r.running {
		out = append(out, j)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		if !out[i].Started.Equal(out[k].Started) {
			return out[i].Started.Before(out[k].Started)
		}
		return out[i].PaperID < out[k].PaperID
	})
	return out
}
