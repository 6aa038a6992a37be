package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogAndRecent(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)

	if err := j.LogRoute("plan my day", "PLANNER", "scheduling"); err != nil {
		t.Fatalf("LogRoute failed: %v", err)
	}
	if err := j.LogHandler("PLANNER", "FINISHED", "done"); err != nil {
		t.Fatalf("LogHandler failed: %v", err)
	}
	if err := j.LogUnlock("escape word"); err != nil {
		t.Fatalf("LogUnlock failed: %v", err)
	}

	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Type != EntryRoute || entries[0].Target != "PLANNER" {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("Timestamp should be filled in")
	}
	if entries[2].Type != EntryUnlock || entries[2].Reason != "escape word" {
		t.Errorf("Unexpected last entry: %+v", entries[2])
	}
}

func TestRecentLimitsAndMissingFile(t *testing.T) {
	j := New(t.TempDir())

	// no file yet
	entries, err := j.Recent(5)
	if err != nil || entries != nil {
		t.Fatalf("Missing journal should be empty, got %v / %v", entries, err)
	}

	for i := 0; i < 10; i++ {
		j.LogUnlock("again")
	}
	entries, _ = j.Recent(3)
	if len(entries) != 3 {
		t.Errorf("Expected last 3 entries, got %d", len(entries))
	}
}

func TestRecentSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)
	j.LogError("PLANNER", "boom")

	path := filepath.Join(dir, "journal.jsonl")
	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	f.WriteString("this is not json\n")
	f.Close()
	j.LogUnlock("after garbage")

	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Malformed line should be skipped, got %d entries", len(entries))
	}
}

func TestJournalIsJSONL(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)
	j.LogRoute("hello", "REPLY", "")

	data, err := os.ReadFile(filepath.Join(dir, "journal.jsonl"))
	if err != nil {
		t.Fatalf("Journal file missing: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		t.Errorf("Expected one JSON object per line, got %q", line)
	}
}
