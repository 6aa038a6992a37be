// Package plan implements the daily plan store: one JSON document per
// calendar date holding the day's time-boxed tasks. The store normalizes
// heterogeneous time formats, merges incremental updates, detects
// interval conflicts, and mirrors changes to an external calendar on a
// best-effort basis. Every public operation returns a structured result;
// no error escapes the store boundary.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/timebox/internal/logging"
)

const planFilePrefix = "daily_tasks_"

var errNoPlan = errors.New("plan file not found")

// Store manages per-date plan documents under a single directory
type Store struct {
	dir    string
	mirror Mirror
	clock  func() time.Time
	mu     sync.Mutex
}

// NewStore creates a plan store rooted at dir
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		clock: time.Now,
	}
}

// SetMirror sets the calendar mirror. A nil mirror disables sync.
func (s *Store) SetMirror(m Mirror) {
	s.mirror = m
}

// SetClock overrides the time source (tests)
func (s *Store) SetClock(fn func() time.Time) {
	s.clock = fn
}

func (s *Store) planPath(date string) string {
	return filepath.Join(s.dir, planFilePrefix+date+".json")
}

// readPlan loads the document for a date. Returns errNoPlan if the file
// does not exist; corruption (non-array JSON) is an ordinary error.
func (s *Store) readPlan(date string) ([]Task, error) {
	data, err := os.ReadFile(s.planPath(date))
	if os.IsNotExist(err) {
		return nil, errNoPlan
	}
	if err != nil {
		return nil, fmt.Errorf("read plan for %s: %w", date, err)
	}

	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("plan file for %s is not a task array: %w", date, err)
	}
	return tasks, nil
}

// writePlan persists the document atomically: marshal to a temp file in
// the same directory, then rename over the target.
func (s *Store) writePlan(date string, tasks []Task) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create plan directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // keep non-ASCII titles readable on disk
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	path := s.planPath(date)
	tmp, err := os.CreateTemp(s.dir, planFilePrefix+date+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp plan file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write plan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write plan: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace plan file: %w", err)
	}
	return nil
}

// sortByStart orders tasks by start ascending. Normalized timestamps sort
// correctly as strings; unparseable leftovers sink to the end.
func sortByStart(tasks []Task, date string) {
	sort.SliceStable(tasks, func(i, j int) bool {
		si, iok := NormalizeTimestamp(tasks[i].Start, date)
		sj, jok := NormalizeTimestamp(tasks[j].Start, date)
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		return si.Before(sj)
	})
}

// SyncStats summarizes calendar mirror outcomes for one operation
type SyncStats struct {
	Synced  int
	Failed  int
	Skipped int
	Notes   []string
}

func (st *SyncStats) summary(configured bool) string {
	if !configured {
		return ""
	}
	msg := fmt.Sprintf(" Calendar sync: %d ok, %d failed, %d skipped.", st.Synced, st.Failed, st.Skipped)
	if len(st.Notes) > 0 {
		msg += " Details: " + strings.Join(st.Notes, "; ")
	}
	return msg
}

// UpsertResult reports the outcome of a merge-upsert
type UpsertResult struct {
	OK      bool
	Kind    FailureKind
	Date    string
	Added   int
	Updated int
	Total   int
	Errors  []string
	Sync    SyncStats
	Message string
}

// Upsert merges a batch of tasks into the document for the resolved
// date. Invalid items are rejected individually; the valid remainder is
// matched against the stored document by id, falling back to title,
// merged field by field, resorted by start, and written back. Tasks
// whose calendar-relevant fields changed are mirrored.
func (s *Store) Upsert(incoming []Task, targetDate string) UpsertResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	date, err := ResolvePlanDate(targetDate, now, incoming)
	if err != nil {
		var amb *DateAmbiguityError
		if errors.As(err, &amb) {
			return UpsertResult{
				Kind:    FailDateAmbiguity,
				Errors:  amb.Dates,
				Message: fmt.Sprintf("❌ Plan not saved: %s. Resubmit with one consistent date.", amb.Error()),
			}
		}
		return UpsertResult{Kind: FailValidation, Message: "❌ Plan not saved: " + err.Error()}
	}

	existing, err := s.readPlan(date)
	if err != nil && !errors.Is(err, errNoPlan) {
		return UpsertResult{Kind: FailPersistence, Date: date, Message: "❌ Plan not saved: " + err.Error()}
	}

	byID := make(map[string]int, len(existing))
	byTitle := make(map[string]int, len(existing))
	for i := range existing {
		if existing[i].ID != "" {
			byID[existing[i].ID] = i
		}
		if existing[i].Title != "" {
			byTitle[existing[i].Title] = i
		}
	}
	// snapshot for idempotent-sync change detection
	before := make(map[string]Task, len(existing))
	for _, t := range existing {
		before[t.Key()] = t
	}

	res := UpsertResult{Date: date}
	merged := append([]Task(nil), existing...)
	var touched []string // keys of valid incoming tasks, in order

	for idx, in := range incoming {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("task %d is missing a title", idx+1))
			continue
		}
		start, sok := NormalizeTimestamp(in.Start, date)
		end, eok := NormalizeTimestamp(in.End, date)
		if !sok || !eok {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: unparseable time window %q -> %q", title, in.Start, in.End))
			continue
		}
		if start.Format(DateLayout) != date || end.Format(DateLayout) != date {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: does not fall on plan date %s", title, date))
			continue
		}
		if !end.After(start) {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: end must be after start", title))
			continue
		}

		norm := in
		norm.Title = title
		norm.Start = start.Format(TimeLayout)
		norm.End = end.Format(TimeLayout)
		if norm.Type == "" {
			norm.Type = DefaultType
		}

		i, matched := -1, false
		if norm.ID != "" {
			if j, ok := byID[norm.ID]; ok {
				i, matched = j, true
			}
		}
		if !matched {
			if j, ok := byTitle[norm.Title]; ok {
				i, matched = j, true
			}
		}

		if matched {
			// merge over the stored task: the stored id, status, and
			// calendar reference survive unless the incoming item
			// overrides them
			kept := merged[i]
			kept.Title = norm.Title
			kept.Start = norm.Start
			kept.End = norm.End
			kept.Type = norm.Type
			if in.Status != "" {
				kept.Status = in.Status
			}
			if in.CalendarRef != "" {
				kept.CalendarRef = in.CalendarRef
			}
			merged[i] = kept
			byTitle[kept.Title] = i
			touched = append(touched, kept.Key())
			res.Updated++
		} else {
			if norm.ID == "" {
				norm.ID = "task_" + uuid.NewString()[:8]
			}
			if norm.Status == "" {
				norm.Status = StatusPending
			}
			merged = append(merged, norm)
			byID[norm.ID] = len(merged) - 1
			byTitle[norm.Title] = len(merged) - 1
			touched = append(touched, norm.Key())
			res.Added++
		}
	}

	if res.Added+res.Updated == 0 {
		if len(res.Errors) == 0 {
			res.Errors = append(res.Errors, "no tasks provided")
		}
		res.Kind = FailValidation
		res.Message = "❌ Plan not saved: " + strings.Join(res.Errors, "; ")
		return res
	}

	sortByStart(merged, date)
	if err := s.writePlan(date, merged); err != nil {
		res.Kind = FailPersistence
		res.Message = "❌ Plan not saved: " + err.Error()
		return res
	}

	res.Total = len(merged)
	s.syncTouched(date, merged, before, touched, &res.Sync)

	res.OK = true
	res.Message = fmt.Sprintf("✅ Plan saved for %s: %d added, %d updated, %d total.",
		date, res.Added, res.Updated, res.Total)
	res.Message += res.Sync.summary(s.mirror != nil)
	if len(res.Errors) > 0 {
		res.Message += " Rejected: " + strings.Join(res.Errors, "; ")
	}
	return res
}

// syncTouched mirrors each touched task whose calendar-relevant fields
// changed since the previous document state. Unchanged tasks are skipped
// to avoid redundant external calls. New external IDs are written back
// to the document.
func (s *Store) syncTouched(date string, merged []Task, before map[string]Task, touched []string, stats *SyncStats) {
	if s.mirror == nil {
		return
	}

	byKey := make(map[string]*Task, len(merged))
	for i := range merged {
		byKey[merged[i].Key()] = &merged[i]
	}

	refsChanged := false
	for _, key := range touched {
		task := byKey[key]
		if task == nil {
			continue
		}
		prev, existed := before[key]
		changed := !existed ||
			prev.Title != task.Title ||
			prev.Start != task.Start ||
			prev.End != task.End ||
			task.CalendarRef == ""
		if !changed {
			stats.Skipped++
			continue
		}

		action := SyncCreate
		if task.CalendarRef != "" {
			action = SyncUpdate
		}
		outcome := s.mirror.Mirror(task, action)
		switch {
		case outcome.OK:
			stats.Synced++
			if outcome.ExternalID != "" && outcome.ExternalID != task.CalendarRef {
				task.CalendarRef = outcome.ExternalID
				refsChanged = true
			}
		case outcome.Note == "":
			// mirror unconfigured, silent no-op
			stats.Skipped++
		default:
			stats.Failed++
			stats.Notes = append(stats.Notes, fmt.Sprintf("%s: %s", task.Label(), outcome.Note))
		}
	}

	if refsChanged {
		if err := s.writePlan(date, merged); err != nil {
			logging.Warn("plan", "failed to persist calendar references for %s: %v", date, err)
		}
	}
}

// RescheduleResult reports the outcome of a single-task reschedule
type RescheduleResult struct {
	OK        bool
	Kind      FailureKind
	Date      string
	Created   bool
	Conflicts []string
	Replaced  int
	Message   string
}

// Reschedule moves an existing task (matched by id or title) to a new
// window, or inserts a new pending task when no match exists. Interval
// conflicts against the rest of the document block the change unless
// force is set, in which case every conflicting task is removed.
func (s *Store) Reschedule(taskID, newStart, newEnd string, force bool, targetDate string) RescheduleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	probe := []Task{{Start: newStart, End: newEnd}}
	date, err := ResolvePlanDate(targetDate, now, probe)
	if err != nil {
		var amb *DateAmbiguityError
		if errors.As(err, &amb) {
			return RescheduleResult{
				Kind:    FailDateAmbiguity,
				Message: fmt.Sprintf("❌ Not rescheduled: %s.", amb.Error()),
			}
		}
		return RescheduleResult{Kind: FailValidation, Message: "❌ Not rescheduled: " + err.Error()}
	}

	tasks, err := s.readPlan(date)
	if err != nil && !errors.Is(err, errNoPlan) {
		return RescheduleResult{Kind: FailPersistence, Date: date, Message: "❌ Not rescheduled: " + err.Error()}
	}

	start, sok := NormalizeTimestamp(newStart, date)
	end, eok := NormalizeTimestamp(newEnd, date)
	if !sok || !eok {
		return RescheduleResult{
			Kind: FailValidation, Date: date,
			Message: fmt.Sprintf("❌ Unparseable time window: %q -> %q.", newStart, newEnd),
		}
	}
	if start.Format(DateLayout) != date || end.Format(DateLayout) != date {
		return RescheduleResult{
			Kind: FailValidation, Date: date,
			Message: fmt.Sprintf("❌ The new window does not fall on plan date %s.", date),
		}
	}
	if !end.After(start) {
		return RescheduleResult{
			Kind: FailValidation, Date: date,
			Message: "❌ End time must be after start time.",
		}
	}
	if start.Before(now) {
		return RescheduleResult{
			Kind: FailValidation, Date: date,
			Message: fmt.Sprintf("❌ New start %s is earlier than the current time.", start.Format("15:04")),
		}
	}

	targetIdx := -1
	for i := range tasks {
		if tasks[i].ID == taskID || tasks[i].Title == taskID {
			targetIdx = i
			break
		}
	}

	var conflicts []int
	for i := range tasks {
		if i == targetIdx {
			continue
		}
		otherStart, ook := NormalizeTimestamp(tasks[i].Start, date)
		otherEnd, oeok := NormalizeTimestamp(tasks[i].End, date)
		if !ook || !oeok {
			continue
		}
		// half-open interval overlap
		if start.Before(otherEnd) && end.After(otherStart) {
			conflicts = append(conflicts, i)
		}
	}

	if len(conflicts) > 0 && !force {
		res := RescheduleResult{Kind: FailConflict, Date: date}
		for _, i := range conflicts {
			res.Conflicts = append(res.Conflicts, tasks[i].Label())
		}
		res.Message = "CONFLICT: " + strings.Join(res.Conflicts, ", ")
		return res
	}

	res := RescheduleResult{Date: date}
	if len(conflicts) > 0 {
		// remove conflicting tasks, deleting their calendar events first
		removed := make(map[int]bool, len(conflicts))
		for _, i := range conflicts {
			removed[i] = true
			if s.mirror != nil && tasks[i].CalendarRef != "" {
				s.mirror.Mirror(&tasks[i], SyncDelete)
			}
		}
		var keep []Task
		for i := range tasks {
			if removed[i] {
				continue
			}
			if i == targetIdx {
				targetIdx = len(keep)
			}
			keep = append(keep, tasks[i])
		}
		tasks = keep
		res.Replaced = len(conflicts)
	}

	startText := start.Format(TimeLayout)
	endText := end.Format(TimeLayout)
	var target Task
	if targetIdx >= 0 {
		tasks[targetIdx].Start = startText
		tasks[targetIdx].End = endText
		target = tasks[targetIdx]
	} else {
		target = Task{
			ID:     taskID,
			Title:  taskID,
			Start:  startText,
			End:    endText,
			Type:   DefaultType,
			Status: StatusPending,
		}
		tasks = append(tasks, target)
		res.Created = true
	}

	sortByStart(tasks, date)
	if err := s.writePlan(date, tasks); err != nil {
		return RescheduleResult{Kind: FailPersistence, Date: date, Message: "❌ Not rescheduled: " + err.Error()}
	}

	syncNote := ""
	if s.mirror != nil {
		action := SyncCreate
		if target.CalendarRef != "" {
			action = SyncUpdate
		}
		outcome := s.mirror.Mirror(&target, action)
		switch {
		case outcome.OK:
			syncNote = ", synced to calendar"
			if outcome.ExternalID != "" && outcome.ExternalID != target.CalendarRef {
				s.storeCalendarRef(date, tasks, target.Key(), outcome.ExternalID)
			}
		case outcome.Note != "":
			syncNote = ", but calendar sync failed: " + outcome.Note
		}
	}

	verb := "Updated"
	if res.Created {
		verb = "Added"
	}
	replaced := ""
	if res.Replaced > 0 {
		replaced = fmt.Sprintf(", replaced %d conflicting task(s)", res.Replaced)
	}
	res.OK = true
	res.Message = fmt.Sprintf("✅ %s %s: %s-%s%s%s",
		verb, taskID, startText[11:], endText[11:], replaced, syncNote)
	return res
}

// storeCalendarRef writes a fresh external event ID back to the document
func (s *Store) storeCalendarRef(date string, tasks []Task, key, ref string) {
	for i := range tasks {
		if tasks[i].Key() == key {
			tasks[i].CalendarRef = ref
			break
		}
	}
	if err := s.writePlan(date, tasks); err != nil {
		logging.Warn("plan", "failed to persist calendar reference for %s: %v", date, err)
	}
}

// ListResult is a read-only formatted listing of one plan document
type ListResult struct {
	OK      bool
	Found   bool
	Date    string
	Lines   []string
	Message string
}

// List renders the plan for the resolved date, ordered by start
func (s *Store) List(targetDate string) ListResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	date, err := ResolvePlanDate(targetDate, now, nil)
	if err != nil {
		return ListResult{Message: "❌ " + err.Error()}
	}

	tasks, err := s.readPlan(date)
	if errors.Is(err, errNoPlan) || (err == nil && len(tasks) == 0) {
		res := ListResult{OK: true, Date: date}
		if date == now.Format(DateLayout) {
			res.Message = fmt.Sprintf("No plan yet for today (%s has not been created).", s.planPath(date))
		} else {
			res.Message = fmt.Sprintf("No plan found for %s.", date)
		}
		return res
	}
	if err != nil {
		return ListResult{Date: date, Message: "❌ " + err.Error()}
	}

	sortByStart(tasks, date)
	res := ListResult{OK: true, Found: true, Date: date}
	res.Lines = summaryLines(tasks, date, true)
	res.Message = fmt.Sprintf("Plan for %s:\n%s", date, strings.Join(res.Lines, "\n"))
	return res
}

// summaryLines renders one line per task: start-end, duration in minutes
// when computable, title, status, and optionally the id.
func summaryLines(tasks []Task, date string, withIDs bool) []string {
	lines := make([]string, 0, len(tasks))
	for idx, t := range tasks {
		start, sok := NormalizeTimestamp(t.Start, date)
		end, eok := NormalizeTimestamp(t.End, date)

		startText, endText := t.Start, t.End
		if startText == "" {
			startText = "-"
		}
		if endText == "" {
			endText = "-"
		}
		if sok {
			startText = start.Format("15:04")
		}
		if eok {
			endText = end.Format("15:04")
		}

		duration := ""
		if sok && eok && end.After(start) {
			duration = fmt.Sprintf(" (%d min)", int(end.Sub(start).Minutes()))
		}

		title := t.Title
		if title == "" {
			title = fmt.Sprintf("task %d", idx+1)
		}
		status := t.Status
		if status == "" {
			status = StatusPending
		}

		line := fmt.Sprintf("%d. %s-%s%s | %s [%s]", idx+1, startText, endText, duration, title, status)
		if withIDs && t.ID != "" {
			line += fmt.Sprintf(" (id=%s)", t.ID)
		}
		lines = append(lines, line)
	}
	return lines
}

// CurrentContext returns the current timestamp with zone, the resolved
// plan date (labeled when not today), and the per-task plan summary.
// Conversational handlers use it to ground their state.
func (s *Store) CurrentContext(targetDate string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	header := "Current time: " + now.Format("2006-01-02 15:04 MST (UTC-0700)")

	date, err := ResolvePlanDate(targetDate, now, nil)
	if err != nil {
		return header + "\nPlan date could not be resolved: " + err.Error()
	}

	label := "Today's plan"
	if date != now.Format(DateLayout) {
		label = fmt.Sprintf("Plan for %s (not today)", date)
	}

	tasks, err := s.readPlan(date)
	if errors.Is(err, errNoPlan) || (err == nil && len(tasks) == 0) {
		return fmt.Sprintf("%s\nNo plan file yet for %s: %s", header, date, s.planPath(date))
	}
	if err != nil {
		return fmt.Sprintf("%s\n%s could not be read: %v", header, label, err)
	}

	sortByStart(tasks, date)
	return fmt.Sprintf("%s\n%s:\n%s", header, label, strings.Join(summaryLines(tasks, date, false), "\n"))
}

// Tasks returns a copy of the document for the resolved date. Read-only
// accessor for the HTTP API; a missing document is an empty list.
func (s *Store) Tasks(targetDate string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date, err := ResolvePlanDate(targetDate, s.clock(), nil)
	if err != nil {
		return nil, err
	}
	tasks, err := s.readPlan(date)
	if errors.Is(err, errNoPlan) {
		return []Task{}, nil
	}
	if err != nil {
		return nil, err
	}
	sortByStart(tasks, date)
	return tasks, nil
}
