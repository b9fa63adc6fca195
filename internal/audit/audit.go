// Package audit provides the append-only activity log. Writes are
// fire-and-forget from the engine's perspective: a logging failure is
// reported to stderr and never propagates as a task failure.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is a single activity log record.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	TraceID   string    `json:"traceId,omitempty"`
	AgentID   string    `json:"agentId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Log records engine activity to a JSON file.
type Log struct {
	logPath string
	entries []Entry
	mu      sync.RWMutex
	maxSize int
	// sync forces synchronous saves; tests set this to observe writes.
	sync bool
	wg   sync.WaitGroup
}

// NewLog creates an activity log at logPath, loading any existing entries.
func NewLog(logPath string) *Log {
	l := &Log{
		logPath: logPath,
		entries: make([]Entry, 0),
		maxSize: 500, // Keep last 500 entries
	}
	l.load()
	return l
}

// LogActivity appends one entry. The payload is stored as-is and truncation
// of long values is the caller's concern.
func (l *Log) LogActivity(actor, action, target string, payload any, traceID, agentID string) {
	l.addEntry(Entry{
		Actor:   actor,
		Action:  action,
		Target:  target,
		Payload: payload,
		TraceID: traceID,
		AgentID: agentID,
	})
}

// LeaseAcquired implements lease.Auditor.
func (l *Log) LeaseAcquired(resource, holder string) {
	l.LogActivity(holder, "lease_acquired", resource, nil, "", "")
}

// LeaseReleased implements lease.Auditor.
func (l *Log) LeaseReleased(resource, holder string) {
	l.LogActivity(holder, "lease_released", resource, nil, "", "")
}

func (l *Log) addEntry(entry Entry) {
	l.mu.Lock()

	entry.ID = time.Now().UnixNano()
	entry.Timestamp = time.Now().UTC()

	l.entries = append(l.entries, entry)
	if len(l.entries) > l.maxSize {
		l.entries = l.entries[len(l.entries)-l.maxSize:]
	}

	// Copy data for async save to avoid holding the lock during IO.
	entriesCopy := make([]Entry, len(l.entries))
	copy(entriesCopy, l.entries)
	syncSave := l.sync
	l.mu.Unlock()

	if syncSave {
		l.saveEntries(entriesCopy)
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.saveEntries(entriesCopy)
	}()
}

// Recent returns the most recent count entries, newest first.
func (l *Log) Recent(count int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if count > len(l.entries) {
		count = len(l.entries)
	}
	start := len(l.entries) - count
	result := make([]Entry, count)
	copy(result, l.entries[start:])
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Count returns the total number of in-memory entries.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Flush waits for pending async saves. Intended for process shutdown.
func (l *Log) Flush() {
	l.wg.Wait()
}

func (l *Log) saveEntries(entries []Entry) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not marshal activity log: %v\n", err)
		return
	}
	dir := filepath.Dir(l.logPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create activity log dir: %v\n", err)
		return
	}
	if err := os.WriteFile(l.logPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not write activity log: %v\n", err)
	}
}

func (l *Log) load() {
	data, err := os.ReadFile(l.logPath)
	if err != nil {
		return
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
}

// NewSyncLog creates a log that saves synchronously; used by tests and by
// short-lived CLI invocations that exit immediately after a task.
func NewSyncLog(logPath string) *Log {
	l := NewLog(logPath)
	l.sync = true
	return l
}
