package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	dir := t.TempDir()
	r := New(dir, "0123456789abcdef", true, slog.New(slog.DiscardHandler))
	r.now = func() time.Time {
		return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	}
	return r, dir
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestRecordWritesJSONLine(t *testing.T) {
	r, dir := newTestRecorder(t)
	r.Record(Event{EventType: EventPromptSubmit, PromptID: "p1"})

	path := filepath.Join(dir, "2026-03-14-01234567.jsonl")
	events := readEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, EventPromptSubmit, events[0].EventType)
	assert.Equal(t, "0123456789abcdef", events[0].SessionID)
	assert.Equal(t, "2026-03-14T12:00:00Z", events[0].Timestamp)
	assert.Len(t, events[0].StudentIDHash, 16)
	assert.Len(t, events[0].MachineIDHash, 16)
}

func TestRecordResponseDedup(t *testing.T) {
	r, dir := newTestRecorder(t)
	ev := Event{EventType: EventAPIResponse, RequestID: "corr-1", ResponseType: "text_response"}
	r.RecordResponse(ev)
	r.RecordResponse(ev)

	events := readEvents(t, filepath.Join(dir, "2026-03-14-01234567.jsonl"))
	assert.Len(t, events, 1, "same correlation id must persist exactly one line")
}

func TestDedupWindowEviction(t *testing.T) {
	r, _ := newTestRecorder(t)
	for i := 0; i < dedupWindowSize+1; i++ {
		r.RecordResponse(Event{EventType: EventAPIResponse, RequestID: fmt.Sprintf("corr-%d", i)})
	}
	assert.LessOrEqual(t, len(r.seen), dedupWindowSize/2+1, "oldest half should be evicted")

	// An evicted id may be written again.
	_, tracked := r.seen["corr-0"]
	assert.False(t, tracked)
}

func TestFileDateMatchesTimestampTimezone(t *testing.T) {
	r, dir := newTestRecorder(t)
	// 23:30 in UTC-5 is 04:30 the next day in UTC; the filename date must
	// agree with the UTC event timestamps.
	r.now = func() time.Time {
		return time.Date(2026, 3, 14, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	}
	r.Record(Event{EventType: EventPromptSubmit, PromptID: "p1"})

	path := filepath.Join(dir, "2026-03-15-01234567.jsonl")
	events := readEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "2026-03-15T04:30:00Z", events[0].Timestamp)
}

func TestRotationBeforeOversizedWrite(t *testing.T) {
	r, dir := newTestRecorder(t)
	r.maxBytes = 600

	for i := 0; i < 5; i++ {
		r.Record(Event{EventType: EventAPIRequest, RequestID: fmt.Sprintf("corr-%d", i), Model: "qwen3-coder-plus"})
	}

	base := filepath.Join(dir, "2026-03-14-01234567.jsonl")
	rolled := filepath.Join(dir, "2026-03-14-01234567-1.jsonl")

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.Less(t, info.Size(), r.maxBytes, "rolled-past file must stay under the cap")

	_, err = os.Stat(rolled)
	require.NoError(t, err, "oversized write must land in the incremented roll file")

	// Every event is persisted in exactly one of the roll files.
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	total := 0
	for _, f := range files {
		total += len(readEvents(t, f))
	}
	assert.Equal(t, 5, total)
}

func TestDisabledRecorderWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "session", false, slog.New(slog.DiscardHandler))
	r.Record(Event{EventType: EventPromptSubmit})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppendFailureIsSwallowed(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.dir = filepath.Join(r.dir, "missing", "\x00bad")

	// Must not panic or surface the error.
	r.Record(Event{EventType: EventAPIRequest})
}
