package tasklog

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	LevelInfo = "info"

	AgentSystem = "system"

	// TimestampLayout is used for timestamps this package synthesizes.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// linePattern matches `[timestamp] agent: message`.
var linePattern = regexp.MustCompile(`^\[([^\]]+)\]\s+([^:]+):\s*(.+)$`)

// timestampLayouts covers RFC 3339 plus the naive ISO and logging formats the
// agent writes. Layouts without a zone are read in local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05,000",
}

// ParseLine turns one raw log line into a LogLine. Lines without the
// bracketed prefix are kept verbatim, attributed to fallbackAgent and stamped
// with readTime. Blank lines yield ok == false.
func ParseLine(raw, fallbackAgent string, readTime time.Time) (LogLine, bool) {
	raw = strings.TrimRight(raw, "\r")
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return LogLine{}, false
	}
	l := LogLine{
		ID:    ulid.Make().String(),
		Level: LevelInfo,
		Raw:   raw,
	}
	if m := linePattern.FindStringSubmatch(trimmed); m != nil {
		l.Timestamp = strings.TrimSpace(m[1])
		l.Agent = strings.TrimSpace(m[2])
		l.Message = strings.TrimSpace(m[3])
		return l, true
	}
	l.Timestamp = FormatTimestamp(readTime)
	l.Agent = fallbackAgent
	l.Message = trimmed
	return l, true
}

// ParseTimestamp parses the timestamp formats found in log files.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// LogFileNames lists the per-task log file names for taskID in lookup order.
// The agent writes `task-<id>.log`, except that an id already carrying the
// `task-` prefix is not prefixed twice.
func LogFileNames(taskID string) []string {
	names := []string{"task-" + taskID + ".log"}
	if strings.HasPrefix(taskID, "task-") {
		names = append(names, taskID+".log")
	}
	return names
}

// TaskIDFromLogFile recovers the task id from a per-task log file name.
func TaskIDFromLogFile(name string) (string, bool) {
	base := path.Base(name)
	if !strings.HasPrefix(base, "task-") || !strings.HasSuffix(base, ".log") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(base, "task-"), ".log")
	if id == "" {
		return "", false
	}
	return id, true
}

// sourceAgent is the agent tag for lines that do not name one: the source
// file name without its extension.
func sourceAgent(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}
