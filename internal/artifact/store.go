// Package artifact holds the shared artifact store and its conflict resolver.
//
// The store is the only state shared between tasks. All mutation goes through
// Apply, which resolves conflicting writes deterministically and records the
// losing side of every conflict for audit.
package artifact

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/conclave/pkg/models"
)

// ErrResolution indicates a conflict whose winner could not be computed.
var ErrResolution = errors.New("conflict resolution failed")

// ResolutionError reports which key and which writers could not be ranked.
type ResolutionError struct {
	Key       string
	TaskID    string
	Incumbent string
	Reason    string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: key %s written by %s and %s: %s",
		ErrResolution, e.Key, e.Incumbent, e.TaskID, e.Reason)
}

// Is lets errors.Is match ErrResolution.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

// Provenance describes who produced a value.
type Provenance struct {
	TaskID     string    `json:"task_id,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Sequence   uint64    `json:"sequence"`
	WrittenAt  time.Time `json:"written_at"`
	// Baseline marks project context values seeded before the run.
	Baseline bool `json:"baseline,omitempty"`
}

// Entry is the current value of one artifact key.
type Entry struct {
	Key        string     `json:"key"`
	Value      any        `json:"value"`
	Version    uint64     `json:"version"`
	Provenance Provenance `json:"provenance"`
}

// Superseded is a losing write kept for audit.
type Superseded struct {
	Key        string     `json:"key"`
	Value      any        `json:"value"`
	Provenance Provenance `json:"provenance"`
	// Winner is the provenance of the value that was kept.
	Winner Provenance `json:"winner"`
}

// WriteOutcome lists what happened to each key of one Apply call.
type WriteOutcome struct {
	Applied    []string
	Superseded []string
	// Displaced holds the entries that lost to this write.
	Displaced []Superseded
}

// Store maps artifact keys to values with provenance and versions.
// It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	superseded []Superseded
	seq        uint64
	now        func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Seed loads project context as baseline entries. Baseline entries are
// replaced by any task write without a conflict record.
func (s *Store) Seed(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s.seq++
		e := s.entries[k]
		if e == nil {
			e = &Entry{Key: k}
			s.entries[k] = e
		}
		e.Value = values[k]
		e.Version++
		e.Provenance = Provenance{Sequence: s.seq, WrittenAt: s.now(), Baseline: true}
	}
}

// Apply writes the values of result for keys on behalf of taskID.
// Calls are ordered: an earlier call is an earlier completion.
// The write is all-or-nothing: if any key cannot be resolved, no key changes
// and a *ResolutionError is returned.
func (s *Store) Apply(taskID, agentID string, result *models.Result, keys []string) (WriteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out WriteOutcome
	if result == nil {
		result = &models.Result{}
	}
	keys = uniqueKeys(keys)
	if len(keys) == 0 {
		return out, nil
	}

	incoming := Provenance{
		TaskID:     taskID,
		AgentID:    agentID,
		Confidence: copyConfidence(result.Confidence),
		Sequence:   s.seq + 1,
		WrittenAt:  s.now(),
	}

	// Decide every key before touching any of them.
	wins := make([]bool, len(keys))
	for i, key := range keys {
		cur := s.entries[key]
		if cur == nil {
			wins[i] = true
			continue
		}
		win, err := Resolve(cur.Provenance, incoming)
		if err != nil {
			return WriteOutcome{}, &ResolutionError{
				Key:       key,
				TaskID:    taskID,
				Incumbent: cur.Provenance.TaskID,
				Reason:    err.Error(),
			}
		}
		wins[i] = win
	}

	s.seq++
	for i, key := range keys {
		value := result.ValueFor(key)
		cur := s.entries[key]
		if cur == nil {
			cur = &Entry{Key: key}
			s.entries[key] = cur
		}
		cur.Version++

		if !wins[i] {
			s.superseded = append(s.superseded, Superseded{
				Key: key, Value: value, Provenance: incoming, Winner: cur.Provenance,
			})
			out.Superseded = append(out.Superseded, key)
			continue
		}

		if cur.Provenance.TaskID != "" && !cur.Provenance.Baseline {
			loser := Superseded{Key: key, Value: cur.Value, Provenance: cur.Provenance, Winner: incoming}
			s.superseded = append(s.superseded, loser)
			out.Displaced = append(out.Displaced, loser)
		}
		cur.Value = value
		cur.Provenance = incoming
		out.Applied = append(out.Applied, key)
	}
	return out, nil
}

// Get returns the current entry for key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Version returns the key's version counter, or 0 if never written.
func (s *Store) Version(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok {
		return e.Version
	}
	return 0
}

// Values returns the current values for keys that exist.
func (s *Store) Values(keys []string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			out[k] = e.Value
		}
	}
	return out
}

// BaselineKeys returns the keys still holding seeded project context.
func (s *Store) BaselineKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k, e := range s.entries {
		if e.Provenance.Baseline {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of every entry keyed by artifact key.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, e := range s.entries {
		out[k] = *e
	}
	return out
}

// Superseded returns the audit trail of losing writes in arrival order.
func (s *Store) Superseded() []Superseded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Superseded(nil), s.superseded...)
}

// uniqueKeys drops repeated and empty keys, keeping first-seen order.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func copyConfidence(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
