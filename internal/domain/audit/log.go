package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GenesisHash is the prev_hash of the first entry in a new log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// ErrEmptyAction is returned when an entry has no action.
var ErrEmptyAction = errors.New("audit: action is required")

// Log is an in-memory append-only audit trail. Each entry's prev_hash links it to its
// predecessor so edits, deletions and insertions are detectable by Verify.
// Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	prevHash string
	now      func() time.Time
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{prevHash: GenesisHash, now: time.Now}
}

// Record stamps and appends an entry, returning the stored copy. The timestamp is
// always assigned by the log, so it never lies in the future.
func (l *Log) Record(e Entry) (Entry, error) {
	if e.Action == "" {
		return Entry{}, ErrEmptyAction
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e.Details = cloneDetails(e.Details)
	e.ID = uuid.NewString()
	e.Timestamp = l.now().UTC()
	e.Sequence = uint64(len(l.entries)) + 1
	e.PrevHash = l.prevHash
	e.Hash = ""

	h, err := hashEntry(&e)
	if err != nil {
		return Entry{}, err
	}
	e.Hash = h

	l.entries = append(l.entries, e)
	l.prevHash = h
	out := e
	out.Details = cloneDetails(e.Details)
	return out, nil
}

// Entries returns a deep copy of every entry in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	for i := range l.entries {
		out[i] = l.entries[i]
		out[i].Details = cloneDetails(l.entries[i].Details)
	}
	return out
}

// ByRun returns a deep copy of the entries recorded for one orchestration run.
func (l *Log) ByRun(runID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for i := range l.entries {
		if l.entries[i].RunID == runID {
			e := l.entries[i]
			e.Details = cloneDetails(e.Details)
			out = append(out, e)
		}
	}
	return out
}

// cloneDetails copies the maps and slices a details value can hold so stored
// entries never alias caller data.
func cloneDetails(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneDetails(x)
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	case []string:
		if x == nil {
			return x
		}
		return append([]string{}, x...)
	case []float64:
		if x == nil {
			return x
		}
		return append([]float64{}, x...)
	case []int:
		if x == nil {
			return x
		}
		return append([]int{}, x...)
	}
	return v
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// VerifyResult reports the outcome of a chain check.
type VerifyResult struct {
	Valid    bool   `json:"valid"`
	Entries  int    `json:"entries"`
	BrokenAt uint64 `json:"broken_at,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Verify recomputes the hash chain over the current entries.
func (l *Log) Verify() VerifyResult {
	return VerifyChain(l.Entries())
}

// VerifyChain checks a sequence of entries for chain integrity.
func VerifyChain(entries []Entry) VerifyResult {
	prev := GenesisHash
	for i := range entries {
		e := entries[i]
		if e.PrevHash != prev {
			return VerifyResult{Entries: len(entries), BrokenAt: e.Sequence, Error: "prev_hash does not match predecessor"}
		}
		stored := e.Hash
		e.Hash = ""
		h, err := hashEntry(&e)
		if err != nil {
			return VerifyResult{Entries: len(entries), BrokenAt: e.Sequence, Error: err.Error()}
		}
		if h != stored {
			return VerifyResult{Entries: len(entries), BrokenAt: e.Sequence, Error: "entry hash mismatch"}
		}
		prev = stored
	}
	return VerifyResult{Valid: true, Entries: len(entries)}
}

func hashEntry(e *Entry) (string, error) {
	line, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("audit: marshal entry: %w", err)
	}
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
