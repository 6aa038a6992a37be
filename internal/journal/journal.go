package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EntryType identifies what kind of journal entry this is
type EntryType string

const (
	EntryRoute   EntryType = "route"   // Router classified and dispatched a turn
	EntryHandler EntryType = "handler" // Handler finished a turn
	EntryUnlock  EntryType = "unlock"  // Session lock released
	EntryIdle    EntryType = "idle"    // Idle alert raised
	EntryError   EntryType = "error"   // Handler or classifier failure
)

// Entry is a single journal line
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Type      EntryType `json:"type"`
	Input     string    `json:"input,omitempty"`   // truncated user input
	Target    string    `json:"target,omitempty"`  // handler name
	Status    string    `json:"status,omitempty"`  // CONTINUE or FINISHED
	Reason    string    `json:"reason,omitempty"`  // classifier reason, error text
	Summary   string    `json:"summary,omitempty"` // truncated handler output
}

// Journal writes observability entries to <state>/journal.jsonl
type Journal struct {
	path string
	mu   sync.Mutex
}

// New creates a journal writer rooted in the given state directory
func New(statePath string) *Journal {
	return &Journal{
		path: filepath.Join(statePath, "journal.jsonl"),
	}
}

// Log appends an entry to the journal
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LogRoute records a classification decision
func (j *Journal) LogRoute(input, target, reason string) error {
	return j.Log(Entry{Type: EntryRoute, Input: input, Target: target, Reason: reason})
}

// LogHandler records a completed handler turn
func (j *Journal) LogHandler(target, status, summary string) error {
	return j.Log(Entry{Type: EntryHandler, Target: target, Status: status, Summary: summary})
}

// LogUnlock records a lock release (escape word or FINISHED status)
func (j *Journal) LogUnlock(reason string) error {
	return j.Log(Entry{Type: EntryUnlock, Reason: reason})
}

// LogIdle records an idle alert
func (j *Journal) LogIdle(idleSeconds int, window string) error {
	return j.Log(Entry{
		Type:   EntryIdle,
		Reason: fmt.Sprintf("idle %ds, foreground %s", idleSeconds, window),
	})
}

// LogError records a handler or classifier failure
func (j *Journal) LogError(target, reason string) error {
	return j.Log(Entry{Type: EntryError, Target: target, Reason: reason})
}

// Recent returns the last n entries from the journal
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}

	if n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
