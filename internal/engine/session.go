package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// ErrSessionBusy is returned when a Session is used while another call on
// it is still in progress.
var ErrSessionBusy = errors.New("session is busy")

// Session runs a Dataflow repeatedly, reusing the output of leading steps
// whose inputs did not change since they were last computed.
//
// A step's cached output is reused only while every earlier step was also
// served from cache in the same run; the first recomputed step makes all
// later entries untrusted for that run. Structural edits (insert, move,
// remove, enable/disable) drop the entries at and after the lowest affected
// position.
//
// A Session requires exclusive access: a call made while another is in
// progress fails with ErrSessionBusy instead of blocking.
type Session struct {
	mu    sync.Mutex
	flow  *Dataflow
	cache *runCache
}

// NewSession wraps flow. The flow should only be changed through the
// session from then on.
func NewSession(flow *Dataflow) *Session {
	return &Session{flow: flow, cache: newRunCache()}
}

func (s *Session) acquire() error {
	if !s.mu.TryLock() {
		return ErrSessionBusy
	}
	return nil
}

// Run executes the pipeline like Dataflow.Run, serving unchanged steps from
// the cache.
func (s *Session) Run(ctx context.Context) (*core.Tableset, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.flow.run(ctx, s.cache)
}

// View calls fn with the underlying dataflow for read-only inspection.
func (s *Session) View(fn func(d *Dataflow)) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	fn(s.flow)
	return nil
}

// Update calls fn with the operation at position i so its parameters can be
// edited. Changed parameters change the input hash, so no entries are
// dropped eagerly.
func (s *Session) Update(i int, fn func(op *Operation)) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	op, err := s.flow.Operation(i)
	if err != nil {
		return err
	}
	fn(op)
	return nil
}

// Append adds an operation at the end.
func (s *Session) Append(op *Operation) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.cache.invalidateFrom(s.flow.Len())
	s.flow.Append(op)
	return nil
}

// Insert places op at position i.
func (s *Session) Insert(i int, op *Operation) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.flow.Insert(i, op); err != nil {
		return err
	}
	s.cache.invalidateFrom(i)
	return nil
}

// Move relocates the operation at from to position to.
func (s *Session) Move(from, to int) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.flow.Move(from, to); err != nil {
		return err
	}
	s.cache.invalidateFrom(min(from, to))
	return nil
}

// Remove deletes the operation at position i.
func (s *Session) Remove(i int) (*Operation, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	op, err := s.flow.Remove(i)
	if err != nil {
		return nil, err
	}
	s.cache.invalidateFrom(i)
	return op, nil
}

// SetEnabled enables or disables the operation at position i.
func (s *Session) SetEnabled(i int, enabled bool) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.flow.SetEnabled(i, enabled); err != nil {
		return err
	}
	s.cache.invalidateFrom(i)
	return nil
}

// SetParameterValues sets pipeline parameter values.
func (s *Session) SetParameterValues(values map[string]any) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.flow.SetParameterValues(values)
}

// SnapshotAfter returns a copy of the tableset cached after position i, or
// false if that step has not been computed.
func (s *Session) SnapshotAfter(i int) (*core.Tableset, bool, error) {
	if err := s.acquire(); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()

	if err := s.flow.checkIndex(i, "operation"); err != nil {
		return nil, false, err
	}
	e, ok := s.cache.entries[i]
	if !ok {
		return nil, false, nil
	}
	return e.snapshot.Copy(), true, nil
}

// CacheStats counts cache use over the lifetime of a session.
type CacheStats struct {
	Hits   int
	Misses int
}

// Stats returns cache hit and miss counts.
func (s *Session) Stats() (CacheStats, error) {
	if err := s.acquire(); err != nil {
		return CacheStats{}, err
	}
	defer s.mu.Unlock()
	return s.cache.stats, nil
}

type cacheEntry struct {
	inputHash string
	// upstreamKey chains the input hashes of the enabled steps before this
	// one, so a change upstream that bypassed invalidation still misses.
	upstreamKey string
	snapshot    *core.Tableset
}

// runCache holds per-position results plus the state of the current run.
// A nil *runCache disables caching.
type runCache struct {
	entries map[int]cacheEntry
	stats   CacheStats

	valid    bool
	upstream string
}

func newRunCache() *runCache {
	return &runCache{entries: map[int]cacheEntry{}}
}

func (c *runCache) begin() {
	if c == nil {
		return
	}
	c.valid = true
	c.upstream = ""
}

func (c *runCache) lookup(i int, h string) (*core.Tableset, bool) {
	e, ok := c.entries[i]
	if !c.valid || !ok || e.inputHash != h || e.upstreamKey != c.upstream {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	c.upstream = chainKey(c.upstream, h)
	return e.snapshot.Copy(), true
}

func (c *runCache) store(i int, h string, ts *core.Tableset) {
	c.entries[i] = cacheEntry{inputHash: h, upstreamKey: c.upstream, snapshot: ts.Copy()}
	c.upstream = chainKey(c.upstream, h)
	c.valid = false
}

func (c *runCache) invalidateFrom(k int) {
	for i := range c.entries {
		if i >= k {
			delete(c.entries, i)
		}
	}
}

func chainKey(upstream, h string) string {
	sum := sha256.Sum256([]byte(upstream + ":" + h))
	return hex.EncodeToString(sum[:])
}
