package engine

import (
	"context"
	"testing"

	"github.com/leapstack-labs/datarush/internal/testutil"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CacheEquivalence(t *testing.T) {
	plain, err := pipeline(counter{}).Run(context.Background())
	require.NoError(t, err)

	calls := counter{}
	s := NewSession(pipeline(calls))
	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, plain.Equal(first))

	for k := range calls {
		delete(calls, k)
	}
	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, plain.Equal(second))
	assert.Empty(t, calls, "an unchanged pipeline recomputes nothing")

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, CacheStats{Hits: 3, Misses: 3}, stats)
}

func TestSession_InvalidationAfterEdit(t *testing.T) {
	calls := counter{}
	s := NewSession(pipeline(calls))
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Update(1, func(op *Operation) { op.SetValue("by", 20) }))
	for k := range calls {
		delete(calls, k)
	}

	ts, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(121)}, values(t, ts, "a"))
	assert.Equal(t, counter{"add:a:20": 1, "add:a:100": 1}, calls, "position 0 served from cache")
}

func TestSession_EntriesSurviveFailedRun(t *testing.T) {
	calls := counter{}
	s := NewSession(pipeline(calls))
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	// Break the first step, run, then restore it. The failed run stores
	// nothing, so every original entry is valid again afterwards.
	require.NoError(t, s.Update(0, func(op *Operation) { op.SetValue("value", "not a number") }))
	_, err = s.Run(context.Background())
	require.Error(t, err)
	require.NoError(t, s.Update(0, func(op *Operation) { op.SetValue("value", 1) }))

	for k := range calls {
		delete(calls, k)
	}
	ts, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(111)}, values(t, ts, "a"))
	assert.Empty(t, calls)
}

func TestSession_MoveInvalidates(t *testing.T) {
	calls := counter{}
	d := pipeline(calls)
	d.Append(NewOperation(addKind(calls), map[string]any{"table": "a", "by": 1000}, false))
	s := NewSession(d)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Move(3, 2))
	for i := 0; i < 2; i++ {
		_, ok, err := s.SnapshotAfter(i)
		require.NoError(t, err)
		assert.True(t, ok, "position %d kept", i)
	}
	for i := 2; i < 4; i++ {
		_, ok, err := s.SnapshotAfter(i)
		require.NoError(t, err)
		assert.False(t, ok, "position %d dropped", i)
	}

	for k := range calls {
		delete(calls, k)
	}
	ts, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1111)}, values(t, ts, "a"))
	assert.Equal(t, counter{"add:a:1000": 1, "add:a:100": 1}, calls)
}

func TestSession_StructuralEditsInvalidate(t *testing.T) {
	tests := []struct {
		name      string
		edit      func(s *Session) error
		wantValue int64
		wantCalls counter
	}{
		{
			name: "insert",
			edit: func(s *Session) error {
				return s.Insert(1, NewOperation(addKind(counter{}), map[string]any{"table": "a", "by": 0}, false))
			},
			wantValue: 111,
			wantCalls: counter{"add:a:10": 1, "add:a:100": 1},
		},
		{
			name:      "remove",
			edit:      func(s *Session) error { _, err := s.Remove(1); return err },
			wantValue: 101,
			wantCalls: counter{"add:a:100": 1},
		},
		{
			name:      "disable",
			edit:      func(s *Session) error { return s.SetEnabled(1, false) },
			wantValue: 101,
			wantCalls: counter{"add:a:100": 1},
		},
		{
			name: "append",
			edit: func(s *Session) error {
				return s.Append(NewOperation(addKind(counter{}), map[string]any{"table": "a", "by": 5}, false))
			},
			wantValue: 116,
			wantCalls: counter{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := counter{}
			s := NewSession(pipeline(calls))
			_, err := s.Run(context.Background())
			require.NoError(t, err)

			require.NoError(t, tt.edit(s))
			for k := range calls {
				delete(calls, k)
			}

			ts, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []any{tt.wantValue}, values(t, ts, "a"))
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestSession_DisableBypassingSessionStillMisses(t *testing.T) {
	calls := counter{}
	d := pipeline(calls)
	s := NewSession(d)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	// Toggling the operation directly skips eager invalidation.
	require.NoError(t, s.View(func(d *Dataflow) { d.operations[1].SetEnabled(false) }))

	ts, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(101)}, values(t, ts, "a"))
}

func TestSession_SnapshotAfter(t *testing.T) {
	s := NewSession(pipeline(counter{}))

	_, ok, err := s.SnapshotAfter(0)
	require.NoError(t, err)
	assert.False(t, ok, "not yet computed")

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	snap, ok, err := s.SnapshotAfter(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{int64(11)}, values(t, snap, "a"))

	// Snapshots are copies.
	snap.Delete("a")
	again, _, err := s.SnapshotAfter(1)
	require.NoError(t, err)
	assert.True(t, again.Has("a"))

	_, _, err = s.SnapshotAfter(3)
	var idxErr *core.IndexError
	require.ErrorAs(t, err, &idxErr)
}

func TestSession_FailureKeepsEarlierEntries(t *testing.T) {
	calls := counter{}
	d := NewDataflow(WithLogger(testutil.NewTestLogger(t)))
	d.Append(NewOperation(emitKind(calls), map[string]any{"table": "a", "value": 1}, false))
	d.Append(NewOperation(addKind(calls), map[string]any{"table": "b"}, false))
	s := NewSession(d)

	_, err := s.Run(context.Background())
	var opErr *core.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 1, opErr.Position)

	_, ok, err := s.SnapshotAfter(0)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = s.SnapshotAfter(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_Busy(t *testing.T) {
	s := NewSession(pipeline(counter{}))
	s.mu.Lock()

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.ErrorIs(t, s.Move(0, 1), ErrSessionBusy)
	assert.ErrorIs(t, s.SetEnabled(0, false), ErrSessionBusy)
	_, _, err = s.SnapshotAfter(0)
	assert.ErrorIs(t, err, ErrSessionBusy)

	s.mu.Unlock()
	_, err = s.Run(context.Background())
	assert.NoError(t, err)
}

func TestSession_ObserverSeesCachedSteps(t *testing.T) {
	var statuses []OperationStatus
	d := pipeline(counter{})
	d.SetObserver(ObserverFunc(func(ev OperationEvent) { statuses = append(statuses, ev.Status) }))
	s := NewSession(d)

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []OperationStatus{
		StatusSucceeded, StatusSucceeded, StatusSucceeded,
		StatusCached, StatusCached, StatusCached,
	}, statuses)
}

func TestSession_NonFiniteFloatParameter(t *testing.T) {
	for _, text := range []string{"NaN", "Inf", "-Inf"} {
		t.Run(text, func(t *testing.T) {
			specs := []core.ParameterSpec{{Name: "ratio", Type: core.ValueFloat}}
			values, err := ParseParameterValues(specs, map[string]string{"ratio": text})
			require.NoError(t, err)

			build := func(calls counter) *Dataflow {
				d := pipeline(calls)
				d.SetParameters(specs)
				require.NoError(t, d.SetParameterValues(values))
				return d
			}

			plain, err := build(counter{}).Run(context.Background())
			require.NoError(t, err)

			calls := counter{}
			s := NewSession(build(calls))
			cached, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, plain.Equal(cached))

			_, err = s.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, counter{"emit:a": 1, "add:a:10": 1, "add:a:100": 1}, calls, "second run served from cache")
		})
	}
}
