// Package journal keeps a bounded in-memory history of pipeline step
// outcomes for diagnostics.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchmate/dmate-go/pipeline"
)

// Entry is one journaled pipeline step.
type Entry struct {
	// ID uniquely identifies the journal entry.
	ID string

	pipeline.TraceEntry
}

// TraceJournal is a bounded in-memory log of pipeline step outcomes,
// indexed by execution. It implements pipeline.TraceRecorder. When the
// journal reaches its cap, the oldest slice of entries is rotated out.
type TraceJournal struct {
	entries       []*Entry
	byExecution   map[string][]*Entry
	mu            sync.RWMutex
	maxEntries    int
	rotatePercent float64
}

// Option configures a TraceJournal.
type Option func(*TraceJournal)

// WithMaxEntries caps the number of retained entries. Non-positive
// values are ignored.
func WithMaxEntries(max int) Option {
	return func(j *TraceJournal) {
		if max > 0 {
			j.maxEntries = max
		}
	}
}

// WithRotatePercent sets the fraction of entries dropped when the cap is
// reached. Values outside (0, 1] are ignored.
func WithRotatePercent(percent float64) Option {
	return func(j *TraceJournal) {
		if percent > 0 && percent <= 1 {
			j.rotatePercent = percent
		}
	}
}

// NewTraceJournal creates a journal retaining up to 10000 entries,
// rotating out the oldest 20% when full.
func NewTraceJournal(opts ...Option) *TraceJournal {
	j := &TraceJournal{
		byExecution:   make(map[string][]*Entry),
		maxEntries:    10000,
		rotatePercent: 0.2,
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// Record stores one pipeline step outcome. The context is accepted for
// the pipeline.TraceRecorder interface and not consulted.
func (j *TraceJournal) Record(_ context.Context, entry pipeline.TraceEntry) {
	e := &Entry{
		ID:         uuid.New().String(),
		TraceEntry: entry,
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.entries) >= j.maxEntries {
		j.rotate()
	}

	j.entries = append(j.entries, e)
	if e.ExecutionID != "" {
		j.byExecution[e.ExecutionID] = append(j.byExecution[e.ExecutionID], e)
	}
}

// ByExecution returns the journaled steps of one execution in recording
// order.
func (j *TraceJournal) ByExecution(executionID string) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return copyEntries(j.byExecution[executionID])
}

// Recent returns up to limit of the most recently recorded entries,
// oldest first. A non-positive limit returns everything.
func (j *TraceJournal) Recent(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entries := j.entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return copyEntries(entries)
}

// Failures returns up to limit of the most recent entries whose step
// ended in an error, oldest first. A non-positive limit returns all of
// them.
func (j *TraceJournal) Failures(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var failed []*Entry
	for _, e := range j.entries {
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	if limit > 0 && len(failed) > limit {
		failed = failed[len(failed)-limit:]
	}
	return copyEntries(failed)
}

// Len returns the number of retained entries.
func (j *TraceJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return len(j.entries)
}

// Clear drops entries recorded more than olderThan ago and returns how
// many were removed. Clear(0) empties the journal.
func (j *TraceJournal) Clear(olderThan time.Duration) int {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	kept := make([]*Entry, 0, len(j.entries))
	for _, e := range j.entries {
		if e.At.After(cutoff) {
			kept = append(kept, e)
		} else {
			removed++
		}
	}

	j.entries = kept
	j.rebuildIndex()

	return removed
}

// rotate removes the oldest entries when the cap is reached. Called with
// the write lock held.
func (j *TraceJournal) rotate() {
	removeCount := int(float64(j.maxEntries) * j.rotatePercent)
	if removeCount < 1 {
		removeCount = 1
	}
	if removeCount > len(j.entries) {
		removeCount = len(j.entries)
	}

	j.entries = j.entries[removeCount:]
	j.rebuildIndex()
}

// rebuildIndex recomputes the execution index. Called with the write
// lock held.
func (j *TraceJournal) rebuildIndex() {
	j.byExecution = make(map[string][]*Entry)
	for _, e := range j.entries {
		if e.ExecutionID != "" {
			j.byExecution[e.ExecutionID] = append(j.byExecution[e.ExecutionID], e)
		}
	}
}

// copyEntries snapshots entries so callers cannot mutate journal state.
func copyEntries(entries []*Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}

var _ pipeline.TraceRecorder = (*TraceJournal)(nil)
