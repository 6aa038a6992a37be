package parking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	result  string
	err     error
	done    chan struct{}
}

func newFakeSearcher(result string) *fakeSearcher {
	return &fakeSearcher{result: result, done: make(chan struct{}, 16)}
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	defer func() { f.done <- struct{}{} }()
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func (f *fakeSearcher) waitForSearch(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Background search did not run")
	}
}

// waitForStatus polls until no item is pending or processing
func waitForSettled(t *testing.T, s *Service) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		items, err := s.Items()
		if err == nil {
			settled := true
			for _, it := range items {
				if it.Status == StatusPending || it.Status == StatusProcessing {
					settled = false
				}
			}
			if settled {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Items never settled")
}

func TestDispatchAck(t *testing.T) {
	s := NewService(t.TempDir(), nil, 1)

	ack := s.Dispatch("look up the train schedule for tomorrow morning please", TypeMemo, "cli", false)
	if !strings.HasPrefix(ack, "📥 Parked: \"") {
		t.Errorf("Unexpected ack: %q", ack)
	}
	if !strings.HasSuffix(ack, "...\"") {
		t.Errorf("Long content should be truncated with ellipsis: %q", ack)
	}

	items, err := s.Items()
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	it := items[0]
	if len(it.ID) != 8 {
		t.Errorf("Expected 8-char id, got %q", it.ID)
	}
	if it.Type != TypeMemo || it.Source != "cli" || it.Status != StatusPending {
		t.Errorf("Unexpected item: %+v", it)
	}
}

func TestSessionlessItemOmitsSessionID(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, nil, 1)

	s.Dispatch("remember the milk", TypeMemo, "cli", false)

	// no active session: the stored document should have no
	// session_id key at all, not an empty string
	data, err := os.ReadFile(filepath.Join(dir, "thought_parking", "current_parking.json"))
	if err != nil {
		t.Fatalf("Store not written: %v", err)
	}
	if strings.Contains(string(data), "session_id") {
		t.Errorf("Sessionless item should omit session_id:\n%s", data)
	}
}

func TestDispatchUnknownTypeDefaultsToSearch(t *testing.T) {
	s := NewService(t.TempDir(), nil, 1)

	s.Dispatch("what is a zettelkasten", "rumination", "cli", false)
	items, _ := s.Items()
	if items[0].Type != TypeSearch {
		t.Errorf("Unknown type should default to search, got %q", items[0].Type)
	}
}

func TestBackgroundSearchCompletes(t *testing.T) {
	dir := t.TempDir()
	searcher := newFakeSearcher("Trains leave every 20 minutes.")
	s := NewService(dir, searcher, 2)
	s.Start()
	defer s.Stop()

	s.Dispatch("train schedule", TypeSearch, "cli", true)
	searcher.waitForSearch(t)
	waitForSettled(t, s)

	items, _ := s.Items()
	it := items[0]
	if it.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %q (err %q)", it.Status, it.Error)
	}
	if it.Result != "Trains leave every 20 minutes." {
		t.Errorf("Result not stored: %q", it.Result)
	}
	if it.CompletedAt == "" {
		t.Error("CompletedAt not set")
	}
}

func TestBackgroundSearchFailure(t *testing.T) {
	searcher := newFakeSearcher("")
	searcher.err = errors.New("model offline")
	s := NewService(t.TempDir(), searcher, 1)
	s.Start()
	defer s.Stop()

	s.Dispatch("doomed query", TypeSearch, "cli", true)
	searcher.waitForSearch(t)
	waitForSettled(t, s)

	items, _ := s.Items()
	if items[0].Status != StatusFailed {
		t.Fatalf("Expected failed, got %q", items[0].Status)
	}
	if !strings.Contains(items[0].Error, "model offline") {
		t.Errorf("Error not recorded: %q", items[0].Error)
	}
}

func TestMemoIsNeverQueued(t *testing.T) {
	searcher := newFakeSearcher("unused")
	s := NewService(t.TempDir(), searcher, 1)
	s.Start()
	defer s.Stop()

	s.Dispatch("remember to water the plants", TypeMemo, "cli", true)
	time.Sleep(50 * time.Millisecond)

	searcher.mu.Lock()
	queries := len(searcher.queries)
	searcher.mu.Unlock()
	if queries != 0 {
		t.Errorf("Memo must not trigger a search, got %d queries", queries)
	}
	items, _ := s.Items()
	if items[0].Status != StatusPending {
		t.Errorf("Memo should stay pending, got %q", items[0].Status)
	}
}

func TestSessionLifecycle(t *testing.T) {
	searcher := newFakeSearcher("42")
	s := NewService(t.TempDir(), searcher, 1)
	s.Start()
	defer s.Stop()

	if s.ActiveSession() != "" {
		t.Fatal("No session should be active initially")
	}

	token := s.StartSession()
	if token == "" || s.ActiveSession() != token {
		t.Fatalf("Session not started: %q", token)
	}

	s.Dispatch("meaning of life", TypeSearch, "focus", true)
	s.Dispatch("note to self", TypeMemo, "focus", false)
	searcher.waitForSearch(t)
	waitForSettled(t, s)

	report := s.EndSession()
	if s.ActiveSession() != "" {
		t.Error("EndSession should clear the active session")
	}
	if !strings.HasPrefix(report, "📋 Parked thoughts") {
		t.Fatalf("Unexpected report: %q", report)
	}
	for _, want := range []string{"✅ \"meaning of life\"", "→ 42", "📝 \"note to self\" - recorded"} {
		if !strings.Contains(report, want) {
			t.Errorf("Report missing %q:\n%s", want, report)
		}
	}
}

func TestEmptySessionReport(t *testing.T) {
	s := NewService(t.TempDir(), nil, 1)
	s.StartSession()
	report := s.EndSession()
	if report != "📭 Nothing was parked during this focus session." {
		t.Errorf("Unexpected empty report: %q", report)
	}
}

func TestSummaryScopedToSession(t *testing.T) {
	s := NewService(t.TempDir(), nil, 1)

	s.Dispatch("before any session", TypeMemo, "cli", false)
	token := s.StartSession()
	s.Dispatch("during the session", TypeMemo, "cli", false)
	s.EndSession()

	report := s.SessionSummary(token)
	if strings.Contains(report, "before any session") {
		t.Errorf("Report leaked items from outside the session:\n%s", report)
	}
	if !strings.Contains(report, "during the session") {
		t.Errorf("Report missing the session's item:\n%s", report)
	}

	// empty session id reports on everything
	all := s.SessionSummary("")
	if !strings.Contains(all, "before any session") {
		t.Errorf("Unscoped report should include every item:\n%s", all)
	}
}

func TestNilSearcherFailsSearch(t *testing.T) {
	s := NewService(t.TempDir(), nil, 1)
	s.Start()
	defer s.Stop()

	s.Dispatch("unanswerable", TypeSearch, "cli", true)
	waitForSettled(t, s)

	items, _ := s.Items()
	if items[0].Status != StatusFailed {
		t.Fatalf("Search without a searcher should fail, got %q", items[0].Status)
	}
}

func TestAuditLogWritten(t *testing.T) {
	dir := t.TempDir()
	s := NewService(dir, nil, 1)
	s.SetClock(func() time.Time {
		return time.Date(2026, 1, 15, 14, 30, 5, 0, time.Local)
	})

	s.Dispatch("leave a trace", TypeMemo, "cli", false)

	path := filepath.Join(dir, "thought_parking", "thought_parking_2026-01-15.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Audit log not written: %v", err)
	}
	line := strings.TrimSpace(string(data))
	want := fmt.Sprintf("[14:30:05] 📥 parked: %s (from cli)", "leave a trace")
	if line != want {
		t.Errorf("Audit line = %q, want %q", line, want)
	}
}

func TestListPending(t *testing.T) {
	s := NewService(t.TempDir(), nil, 1)

	if got := s.ListPending(); got != "📭 No parked thoughts are waiting." {
		t.Errorf("Unexpected empty listing: %q", got)
	}

	s.Dispatch("first", TypeTodo, "cli", false)
	s.Dispatch("second", TypeMemo, "cli", false)
	listing := s.ListPending()
	if !strings.HasPrefix(listing, "📋 Pending items (2):") {
		t.Errorf("Unexpected listing header: %q", listing)
	}
	if !strings.Contains(listing, "first [todo]") || !strings.Contains(listing, "second [memo]") {
		t.Errorf("Listing missing items:\n%s", listing)
	}
}
