package tasklog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kazz187/orchestra/pkg/storage"
)

// agentMessageMarker tags files in the message directory that were written
// by the agent rather than by the dashboard.
const agentMessageMarker = "agent-msg"

var agentMessageTaskPattern = regexp.MustCompile(`^agent-msg-(.+)-msg-`)

// Layout locates the files the engine reads, relative to the storage root.
type Layout struct {
	LogsDir     string
	SystemLog   string
	MessagesDir string
}

// Engine rebuilds a task's transcript from the files the external agent
// writes. Every method is best effort: an unreadable or malformed source
// contributes nothing and never fails the call.
type Engine struct {
	storage storage.Storage
	layout  Layout
	now     func() time.Time
}

func NewEngine(s storage.Storage, layout Layout) *Engine {
	return &Engine{
		storage: s,
		layout:  layout,
		now:     time.Now,
	}
}

// TaskLogs returns the per-task log lines plus the system log lines that
// mention taskID, ascending by timestamp.
func (e *Engine) TaskLogs(ctx context.Context, taskID string) []LogLine {
	if taskID == "" {
		return []LogLine{}
	}
	readTime := e.now()
	lines := []LogLine{}
	lines = append(lines, e.readTaskLog(ctx, taskID, readTime, false)...)
	lines = append(lines, e.readSystemLog(ctx, taskID, readTime)...)
	sortLines(lines, readTime)
	return lines
}

// ProjectLogs merges the structured lines of every given task log. Lines
// without the bracketed prefix are dropped.
func (e *Engine) ProjectLogs(ctx context.Context, taskIDs []string) []LogLine {
	readTime := e.now()
	lines := []LogLine{}
	for _, id := range taskIDs {
		if id == "" {
			continue
		}
		lines = append(lines, e.readTaskLog(ctx, id, readTime, true)...)
	}
	sortLines(lines, readTime)
	return lines
}

func (e *Engine) readTaskLog(ctx context.Context, taskID string, readTime time.Time, structuredOnly bool) []LogLine {
	for _, name := range LogFileNames(taskID) {
		p := path.Join(e.layout.LogsDir, name)
		data, err := e.storage.Read(ctx, p)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				slog.DebugContext(ctx, "failed to read task log", "path", p, "error", err)
			}
			continue
		}
		agent := sourceAgent(name)
		var lines []LogLine
		for i, raw := range splitLines(data) {
			l, ok := ParseLine(raw, agent, readTime)
			if !ok {
				continue
			}
			if structuredOnly && !linePattern.MatchString(strings.TrimSpace(l.Raw)) {
				continue
			}
			l.TaskID = taskID
			l.Source = name
			l.Line = i + 1
			lines = append(lines, l)
		}
		return lines
	}
	return nil
}

func (e *Engine) readSystemLog(ctx context.Context, taskID string, readTime time.Time) []LogLine {
	if e.layout.SystemLog == "" {
		return nil
	}
	data, err := e.storage.Read(ctx, e.layout.SystemLog)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.DebugContext(ctx, "failed to read system log", "path", e.layout.SystemLog, "error", err)
		}
		return nil
	}
	source := path.Base(e.layout.SystemLog)
	ts := FormatTimestamp(readTime)
	var lines []LogLine
	for i, raw := range splitLines(data) {
		if !strings.Contains(raw, taskID) {
			continue
		}
		l, ok := ParseLine(raw, AgentSystem, readTime)
		if !ok {
			continue
		}
		// The system log has no per-task timestamps of its own.
		l.Agent = AgentSystem
		l.Message = strings.TrimSpace(raw)
		l.Timestamp = ts
		l.TaskID = taskID
		l.Source = source
		l.Line = i + 1
		lines = append(lines, l)
	}
	return lines
}

// AgentMessages returns the agent-written message files that belong to
// taskID, ascending by their own timestamp.
func (e *Engine) AgentMessages(ctx context.Context, taskID string) []AgentMessage {
	msgs := []AgentMessage{}
	if taskID == "" {
		return msgs
	}
	paths, err := e.storage.List(ctx, e.layout.MessagesDir)
	if err != nil {
		slog.DebugContext(ctx, "failed to list message directory", "path", e.layout.MessagesDir, "error", err)
		return msgs
	}
	for _, p := range paths {
		name := path.Base(p)
		if !strings.HasSuffix(name, ".json") || !strings.Contains(name, agentMessageMarker) {
			continue
		}
		data, err := e.storage.Read(ctx, p)
		if err != nil {
			slog.DebugContext(ctx, "failed to read agent message", "path", p, "error", err)
			continue
		}
		var msg AgentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.DebugContext(ctx, "skipping malformed agent message", "path", p, "error", err)
			continue
		}
		if !belongsTo(name, &msg, taskID) {
			continue
		}
		msg.Filename = name
		msgs = append(msgs, msg)
	}

	readTime := e.now()
	sort.SliceStable(msgs, func(i, j int) bool {
		return sortTime(msgs[i].Timestamp, readTime).Before(sortTime(msgs[j].Timestamp, readTime))
	})
	return msgs
}

func belongsTo(name string, msg *AgentMessage, taskID string) bool {
	if m := agentMessageTaskPattern.FindStringSubmatch(name); m != nil && m[1] == taskID {
		return true
	}
	if strings.Contains(msg.ID, taskID) {
		return true
	}
	var data struct {
		ID string `json:"id"`
	}
	if len(msg.Data) > 0 && json.Unmarshal(msg.Data, &data) == nil {
		return strings.Contains(data.ID, taskID)
	}
	return false
}

// Progress assembles the transcript and progress estimate for one task.
func (e *Engine) Progress(ctx context.Context, taskID, status string) *Progress {
	logs := e.TaskLogs(ctx, taskID)
	percent, step := ComputeProgress(logs, status)
	return &Progress{
		TaskID:        taskID,
		Status:        status,
		Progress:      percent,
		CurrentStep:   step,
		Logs:          logs,
		AgentMessages: e.AgentMessages(ctx, taskID),
	}
}

func splitLines(data []byte) []string {
	return strings.Split(string(data), "\n")
}

func sortTime(ts string, fallback time.Time) time.Time {
	if t, ok := ParseTimestamp(ts); ok {
		return t
	}
	return fallback
}

func sortLines(lines []LogLine, readTime time.Time) {
	sort.SliceStable(lines, func(i, j int) bool {
		return sortTime(lines[i].Timestamp, readTime).Before(sortTime(lines[j].Timestamp, readTime))
	})
}
