// Package parking implements the thought parking queue: an append-only
// store of deferred thoughts and queries. Search items are researched by
// a small background worker pool; everything else is just recorded. A
// session token groups items parked during one focus session so the
// focus handler can report on them afterwards.
package parking

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/timebox/internal/logging"
)

const (
	currentFile   = "current_parking.json"
	timestampFmt  = "2006-01-02 15:04:05"
	searchTimeout = 2 * time.Minute
)

// Searcher is the opaque "fetch and summarize" collaborator used for
// search items.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Service owns the parking documents and the background worker pool
type Service struct {
	dir      string
	searcher Searcher
	clock    func() time.Time

	// mu serializes every read-modify-write of the shared document and
	// the audit log; write volume is low, one coarse lock is enough
	mu sync.Mutex

	jobs    chan string
	workers int
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	sessMu    sync.Mutex
	sessionID string
}

// NewService creates the queue rooted at brainDir/thought_parking. The
// searcher may be nil; search items then fail with an explanatory error.
func NewService(brainDir string, searcher Searcher, workers int) *Service {
	if workers < 1 {
		workers = 2
	}
	return &Service{
		dir:      filepath.Join(brainDir, "thought_parking"),
		searcher: searcher,
		clock:    time.Now,
		jobs:     make(chan string, 256),
		workers:  workers,
	}
}

// SetClock overrides the time source (tests)
func (s *Service) SetClock(fn func() time.Time) {
	s.clock = fn
}

// Start launches the worker pool
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	logging.Info("parking", "started %d background workers", s.workers)
}

// Stop drains the pool. In-flight searches run to completion; there is
// no cancellation primitive for a submitted item.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.jobs:
			s.process(id)
		}
	}
}

// Dispatch appends a new pending item and acknowledges immediately.
// Search items with runAsync are handed to the worker pool; the caller
// never blocks on background work.
func (s *Service) Dispatch(content string, itemType Type, source string, runAsync bool) string {
	normalized := Type(strings.ToLower(string(itemType)))
	switch normalized {
	case TypeSearch, TypeMemo, TypeTodo:
	default:
		normalized = TypeSearch
	}
	if source == "" {
		source = "unknown"
	}

	now := s.clock()
	item := Item{
		ID:        uuid.NewString()[:8],
		Content:   content,
		Type:      normalized,
		Source:    source,
		Status:    StatusPending,
		SessionID: s.ActiveSession(),
		CreatedAt: now.Format(timestampFmt),
	}

	s.mu.Lock()
	items, err := s.loadLocked()
	if err != nil {
		logging.Warn("parking", "reset unreadable parking file: %v", err)
		items = nil
	}
	items = append(items, item)
	if err := s.saveLocked(items); err != nil {
		s.mu.Unlock()
		return "❌ Could not park that: " + err.Error()
	}
	s.auditLocked(now, fmt.Sprintf("📥 parked: %s (from %s)", logging.Truncate(content, 60), source))
	s.mu.Unlock()

	if runAsync && normalized == TypeSearch {
		select {
		case s.jobs <- item.ID:
		default:
			// queue full; item stays pending, nothing is lost
			logging.Warn("parking", "worker queue full, %s stays pending", item.ID)
		}
	}

	preview := []rune(content)
	suffix := ""
	if len(preview) > 30 {
		preview = preview[:30]
		suffix = "..."
	}
	return fmt.Sprintf("📥 Parked: \"%s%s\"", string(preview), suffix)
}

// process runs the background search for one item
func (s *Service) process(id string) {
	item, ok := s.updateItem(id, func(it *Item) {
		it.Status = StatusProcessing
	})
	if !ok {
		return
	}

	result, err := s.runSearch(item.Content)
	now := s.clock()
	if err != nil {
		s.updateItem(id, func(it *Item) {
			it.Status = StatusFailed
			it.Error = err.Error()
		})
		s.audit(now, fmt.Sprintf("❌ failed: %s - %v", logging.Truncate(item.Content, 30), err))
		return
	}

	s.updateItem(id, func(it *Item) {
		it.Status = StatusCompleted
		it.Result = result
		it.CompletedAt = now.Format(timestampFmt)
	})
	s.audit(now, fmt.Sprintf("✅ done: %s", logging.Truncate(item.Content, 30)))
}

func (s *Service) runSearch(query string) (string, error) {
	if s.searcher == nil {
		return "", fmt.Errorf("no search capability configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()
	return s.searcher.Search(ctx, query)
}

// StartSession begins a focus session and returns its token
func (s *Service) StartSession() string {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	s.sessionID = s.clock().Format("20060102_150405")
	return s.sessionID
}

// ActiveSession returns the current session token, or "" when none
func (s *Service) ActiveSession() string {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	return s.sessionID
}

// EndSession clears the active session and returns its report. Items
// persist; only the session pointer is transient.
func (s *Service) EndSession() string {
	s.sessMu.Lock()
	target := s.sessionID
	s.sessionID = ""
	s.sessMu.Unlock()
	return s.SessionSummary(target)
}

// SessionSummary formats a report for the given session; an empty
// session ID reports on every item.
func (s *Service) SessionSummary(sessionID string) string {
	s.mu.Lock()
	items, err := s.loadLocked()
	s.mu.Unlock()
	if err != nil {
		return "❌ Could not read parked thoughts: " + err.Error()
	}

	var selected []Item
	for _, it := range items {
		if sessionID == "" || it.SessionID == sessionID {
			selected = append(selected, it)
		}
	}
	if len(selected) == 0 {
		return "📭 Nothing was parked during this focus session."
	}

	lines := []string{"📋 Parked thoughts from this focus session:", ""}
	for _, it := range selected {
		content := logging.Truncate(it.Content, 50)
		switch {
		case it.Status == StatusCompleted && it.Result != "":
			lines = append(lines, fmt.Sprintf("✅ \"%s\"", content))
			lines = append(lines, "   → "+logging.Truncate(it.Result, 200))
		case it.Status == StatusPending || it.Status == StatusProcessing:
			lines = append(lines, fmt.Sprintf("⏳ \"%s\" - still processing", content))
		case it.Status == StatusFailed:
			lines = append(lines, fmt.Sprintf("❌ \"%s\" - processing failed", content))
		default:
			lines = append(lines, fmt.Sprintf("📝 \"%s\" - recorded", content))
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// ListPending renders the items still waiting for processing
func (s *Service) ListPending() string {
	s.mu.Lock()
	items, err := s.loadLocked()
	s.mu.Unlock()
	if err != nil {
		return "❌ Could not read parked thoughts: " + err.Error()
	}

	var pending []Item
	for _, it := range items {
		if it.Status == StatusPending {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		return "📭 No parked thoughts are waiting."
	}

	lines := []string{fmt.Sprintf("📋 Pending items (%d):", len(pending))}
	for _, it := range pending {
		lines = append(lines, fmt.Sprintf("  - %s [%s]", logging.Truncate(it.Content, 40), it.Type))
	}
	return strings.Join(lines, "\n")
}

// Items returns a copy of the full document (tests, inspection)
func (s *Service) Items() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// updateItem applies fn to one item under the document lock and
// persists. Returns the updated item.
func (s *Service) updateItem(id string, fn func(*Item)) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadLocked()
	if err != nil {
		logging.Warn("parking", "update of %s skipped: %v", id, err)
		return Item{}, false
	}
	for i := range items {
		if items[i].ID == id {
			fn(&items[i])
			if err := s.saveLocked(items); err != nil {
				logging.Warn("parking", "update of %s not persisted: %v", id, err)
				return Item{}, false
			}
			return items[i], true
		}
	}
	return Item{}, false
}

func (s *Service) loadLocked() ([]Item, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read parking file: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse parking file: %w", err)
	}
	return items, nil
}

func (s *Service) saveLocked(items []Item) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create parking directory: %w", err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal parking file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, currentFile), data, 0644); err != nil {
		return fmt.Errorf("write parking file: %w", err)
	}
	return nil
}

func (s *Service) audit(now time.Time, event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLocked(now, event)
}

// auditLocked appends one line to today's plain-text audit log
func (s *Service) auditLocked(now time.Time, event string) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return
	}
	path := filepath.Join(s.dir, "thought_parking_"+now.Format("2006-01-02")+".txt")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logging.Debug("parking", "audit log unavailable: %v", err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] %s\n", now.Format("15:04:05"), event)
}
