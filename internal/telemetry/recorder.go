package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tddg/qwen-code/internal/identity"
)

const (
	// defaultMaxFileBytes is the rotation cap for one log file.
	defaultMaxFileBytes = 10 * 1024 * 1024

	// dedupWindowSize bounds the tracked correlation ids; once exceeded,
	// the oldest half is dropped.
	dedupWindowSize = 1024

	// sessionPrefixLen is how much of the session id appears in filenames.
	sessionPrefixLen = 8
)

// Recorder appends one JSON line per event to the active log file, rotating
// to a new roll number once the cap is reached. It owns the rotation state
// and the response dedup window; a process with multiple chat sessions must
// share one Recorder so both stay consistent. All methods are safe for
// serialized concurrent use.
type Recorder struct {
	mu        sync.Mutex
	dir       string
	sessionID string
	prefix    string
	enabled   bool
	logger    *slog.Logger

	studentHash string
	machineHash string

	date     string
	roll     int
	maxBytes int64
	now      func() time.Time

	seen      map[string]struct{}
	seenOrder []string
}

// New creates a Recorder writing under dir. Identity hashes are computed
// once here and attached to every event. A disabled Recorder accepts events
// and discards them.
func New(dir, sessionID string, enabled bool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := sessionID
	if len(prefix) > sessionPrefixLen {
		prefix = prefix[:sessionPrefixLen]
	}
	return &Recorder{
		dir:         dir,
		sessionID:   sessionID,
		prefix:      prefix,
		enabled:     enabled,
		logger:      logger,
		studentHash: identity.OperatorHash(),
		machineHash: identity.MachineHash(),
		maxBytes:    defaultMaxFileBytes,
		now:         time.Now,
		seen:        make(map[string]struct{}),
	}
}

// Enabled reports whether events are being persisted.
func (r *Recorder) Enabled() bool {
	return r != nil && r.enabled
}

// Record appends a single event. Filesystem failures are reported to the
// diagnostic logger and never returned to the caller.
func (r *Recorder) Record(ev Event) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(ev)
}

// RecordResponse appends a response event at most once per correlation id.
// The id is tracked before writing, so a second attempt for the same
// exchange is skipped even if the first write failed.
func (r *Recorder) RecordResponse(ev Event) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.RequestID != "" {
		if _, dup := r.seen[ev.RequestID]; dup {
			return
		}
		r.remember(ev.RequestID)
	}
	r.append(ev)
}

// RecordSessionStart marks the beginning of an interactive session.
func (r *Recorder) RecordSessionStart(model, authType string) {
	r.Record(Event{
		EventType: EventSessionStart,
		Model:     model,
		AuthType:  authType,
	})
}

// RecordSessionEnd marks the end of an interactive session.
func (r *Recorder) RecordSessionEnd(model string, duration time.Duration, turns int) {
	r.Record(Event{
		EventType:  EventSessionEnd,
		Model:      model,
		DurationMs: duration.Milliseconds(),
		Detail:     map[string]any{"turns": turns},
	})
}

// remember inserts a correlation id into the dedup window, evicting the
// oldest half once the window exceeds its capacity.
func (r *Recorder) remember(id string) {
	r.seen[id] = struct{}{}
	r.seenOrder = append(r.seenOrder, id)
	if len(r.seenOrder) <= dedupWindowSize {
		return
	}
	cut := len(r.seenOrder) / 2
	for _, old := range r.seenOrder[:cut] {
		delete(r.seen, old)
	}
	r.seenOrder = append([]string(nil), r.seenOrder[cut:]...)
}

// append serializes the event and writes it to the active file, rotating
// first when the write would meet or exceed the size cap. Callers hold r.mu.
func (r *Recorder) append(ev Event) {
	r.fill(&ev)

	line, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("telemetry event not serializable", "eventType", ev.EventType, "error", err)
		return
	}
	line = append(line, '\n')

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.logger.Warn("telemetry directory unavailable", "dir", r.dir, "error", err)
		return
	}

	path := r.rotateIfNeeded(int64(len(line)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		r.logger.Warn("telemetry file open failed", "file", path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		r.logger.Warn("telemetry append failed", "file", path, "error", err)
	}
}

// fill stamps shared fields the caller left empty.
func (r *Recorder) fill(ev *Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = r.now().UTC().Format(time.RFC3339)
	}
	if ev.SessionID == "" {
		ev.SessionID = r.sessionID
	}
	ev.StudentIDHash = r.studentHash
	ev.MachineIDHash = r.machineHash
}

// rotateIfNeeded returns the path the next write must target. If appending
// lineLen bytes to the active file would meet or exceed the cap, the roll
// number is incremented first so the oversized write lands in the new file.
func (r *Recorder) rotateIfNeeded(lineLen int64) string {
	date := r.now().UTC().Format("2006-01-02")
	if date != r.date {
		r.date = date
		r.roll = 0
	}

	path := filepath.Join(r.dir, r.fileName())
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	if info.Size()+lineLen >= r.maxBytes {
		r.roll++
		path = filepath.Join(r.dir, r.fileName())
	}
	return path
}

// fileName computes {date}-{prefix}[-{roll}].jsonl; the roll suffix is
// omitted while it is zero.
func (r *Recorder) fileName() string {
	if r.roll == 0 {
		return fmt.Sprintf("%s-%s.jsonl", r.date, r.prefix)
	}
	return fmt.Sprintf("%s-%s-%d.jsonl", r.date, r.prefix, r.roll)
}
