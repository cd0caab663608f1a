package sinks

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kylealanhale/quicli/pkg/progress"
)

// ErrNotFound signals that no events were seen for the requested renderer.
var ErrNotFound = errors.New("renderer not found")

// Status is the lifecycle state of a renderer as seen by a StateSink.
type Status string

// Renderer statuses.
const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// RendererState is the latest known view of one renderer.
type RendererState struct {
	// ID is the renderer's UUID.
	ID uuid.UUID
	// Kind is percentage or time.
	Kind progress.Kind
	// Status is running until a STOP or FAULT event arrives.
	Status Status
	// StartedAt is the timestamp of the first event seen.
	StartedAt time.Time
	// UpdatedAt is the timestamp of the most recent event.
	UpdatedAt time.Time
	// FinishedAt is nil while the renderer is running.
	FinishedAt *time.Time
	// Text is the last line actually drawn.
	Text     string
	Fraction float64
	Elapsed  time.Duration
	Redraws  int64
	Skips    int64
	// Error holds the fault note for failed renderers.
	Error *string
}

// StateSink keeps the latest state of every renderer in memory so it can be
// queried while commands run.
type StateSink struct {
	mu        sync.RWMutex
	renderers map[uuid.UUID]*RendererState
}

// NewStateSink returns an empty StateSink.
func NewStateSink() *StateSink {
	return &StateSink{renderers: make(map[uuid.UUID]*RendererState)}
}

// Consume folds batch into the per-renderer state.
func (s *StateSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StateSink) apply(evt progress.Event) {
	id := evt.RendererUUID()
	st := s.renderers[id]
	if st == nil {
		st = &RendererState{ID: id, Kind: evt.Kind, Status: StatusRunning, StartedAt: evt.TS}
		s.renderers[id] = st
	}
	if evt.TS.After(st.UpdatedAt) {
		st.UpdatedAt = evt.TS
	}

	switch evt.Stage {
	case progress.StageStart:
		// a restarted timer reuses its id
		st.Status = StatusRunning
		st.StartedAt = evt.TS
		st.FinishedAt = nil
		st.Error = nil
		st.Elapsed = 0
	case progress.StageRedraw:
		st.Redraws++
		st.Text = evt.Text
	case progress.StageSkip:
		st.Skips++
	case progress.StageStop:
		st.Status = StatusFinished
		ts := evt.TS
		st.FinishedAt = &ts
	case progress.StageFault:
		st.Status = StatusFailed
		ts := evt.TS
		st.FinishedAt = &ts
		note := evt.Note
		st.Error = &note
	}
	switch evt.Kind {
	case progress.KindPercentage:
		st.Fraction = evt.Fraction
	case progress.KindTime:
		st.Elapsed = max(st.Elapsed, evt.Elapsed)
	}
}

// List returns a copy of every renderer's state, optionally filtered by
// status, ordered by start time.
func (s *StateSink) List(status *Status) []RendererState {
	s.mu.RLock()
	out := make([]RendererState, 0, len(s.renderers))
	for _, st := range s.renderers {
		if status != nil && st.Status != *status {
			continue
		}
		out = append(out, *st)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b RendererState) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// Get returns one renderer's state or ErrNotFound.
func (s *StateSink) Get(id uuid.UUID) (RendererState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.renderers[id]
	if !ok {
		return RendererState{}, ErrNotFound
	}
	return *st, nil
}

// Close implements the Sink interface; state stays queryable afterwards.
func (s *StateSink) Close(context.Context) error {
	return nil
}
