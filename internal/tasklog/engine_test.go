package tasklog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/orchestra/pkg/storage"
)

var testLayout = Layout{
	LogsDir:     "logs",
	SystemLog:   "communication/messages/system.log",
	MessagesDir: "communication/messages",
}

func newTestEngine(t *testing.T) (*Engine, *storage.LocalStorage, time.Time) {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	readTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(s, testLayout)
	e.now = func() time.Time { return readTime }
	return e, s, readTime
}

func write(t *testing.T, s storage.Storage, path, content string) {
	t.Helper()
	require.NoError(t, s.Write(context.Background(), path, []byte(content)))
}

// withoutIDs drops the read-time ids so two reads can be compared.
func withoutIDs(lines []LogLine) []LogLine {
	out := make([]LogLine, len(lines))
	for i, l := range lines {
		l.ID = ""
		out[i] = l
	}
	return out
}

func TestEngine_TaskLogs_NoSources(t *testing.T) {
	e, _, _ := newTestEngine(t)

	lines := e.TaskLogs(context.Background(), "01HX")
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestEngine_TaskLogs_ParsesBracketedLines(t *testing.T) {
	e, s, _ := newTestEngine(t)
	write(t, s, "logs/task-01HX.log",
		"[2024-01-01T00:00:00Z] producer: received the task\n"+
			"\n"+
			"[2024-01-01T00:05:00Z] actor: implementing now\n")

	lines := e.TaskLogs(context.Background(), "01HX")
	require.Len(t, lines, 2)

	assert.Equal(t, "producer", lines[0].Agent)
	assert.Equal(t, "received the task", lines[0].Message)
	assert.Equal(t, "2024-01-01T00:00:00Z", lines[0].Timestamp)
	assert.Equal(t, 1, lines[0].Line)
	assert.Equal(t, "task-01HX.log", lines[0].Source)
	assert.Equal(t, "01HX", lines[0].TaskID)

	assert.Equal(t, "actor", lines[1].Agent)
	assert.Equal(t, "implementing now", lines[1].Message)
	assert.Equal(t, 3, lines[1].Line)

	percent, step := ComputeProgress(lines, "in_progress")
	assert.Equal(t, 60, percent)
	assert.Equal(t, "implementing", step)
}

func TestEngine_TaskLogs_UnstructuredAndSystemLines(t *testing.T) {
	e, s, readTime := newTestEngine(t)
	write(t, s, "logs/task-01HX.log",
		"[2024-01-01T00:00:00Z] producer: received the task\n"+
			"Traceback (most recent call last):\n")
	write(t, s, "communication/messages/system.log",
		"dispatching 01HX to director\n"+
			"dispatching 01HY to director\n")

	lines := e.TaskLogs(context.Background(), "01HX")
	require.Len(t, lines, 3)

	assert.Equal(t, "producer", lines[0].Agent)

	assert.Equal(t, "task-01HX", lines[1].Agent)
	assert.Equal(t, "Traceback (most recent call last):", lines[1].Message)
	assert.Equal(t, "Traceback (most recent call last):", lines[1].Raw)
	assert.Equal(t, FormatTimestamp(readTime), lines[1].Timestamp)

	assert.Equal(t, AgentSystem, lines[2].Agent)
	assert.Equal(t, "dispatching 01HX to director", lines[2].Message)
	assert.Equal(t, "system.log", lines[2].Source)
	assert.Equal(t, 1, lines[2].Line)
}

func TestEngine_TaskLogs_SortsByTimestamp(t *testing.T) {
	e, s, _ := newTestEngine(t)
	write(t, s, "logs/task-01HX.log",
		"[2024-01-01T00:10:00Z] director: planning\n"+
			"[2024-01-01T09:00:00+09:00] producer: received\n"+
			"[2024-01-01T00:05:00.5Z] director: analyzing\n")

	lines := e.TaskLogs(context.Background(), "01HX")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"received", "analyzing", "planning"},
		[]string{lines[0].Message, lines[1].Message, lines[2].Message})
}

func TestEngine_TaskLogs_PrefixedTaskID(t *testing.T) {
	e, s, _ := newTestEngine(t)
	write(t, s, "logs/task-1704067200000-abc.log", "[2024-01-01T00:00:00Z] producer: hello\n")

	lines := e.TaskLogs(context.Background(), "task-1704067200000-abc")
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0].Message)
}

func TestEngine_TaskLogs_Idempotent(t *testing.T) {
	e, s, _ := newTestEngine(t)
	write(t, s, "logs/task-01HX.log",
		"[2024-01-01T00:00:00Z] producer: received the task\n"+
			"plain line\n")
	write(t, s, "communication/messages/system.log", "01HX queued\n")

	first := e.TaskLogs(context.Background(), "01HX")
	second := e.TaskLogs(context.Background(), "01HX")
	assert.Equal(t, withoutIDs(first), withoutIDs(second))
}

func TestEngine_AgentMessages(t *testing.T) {
	e, s, _ := newTestEngine(t)
	dir := "communication/messages/"
	write(t, s, dir+"agent-msg-01HX-msg-2.json", `{"id":"msg-2","type":"status","from":"director","timestamp":"2024-01-01T00:02:00Z"}`)
	write(t, s, dir+"agent-msg-01HX-msg-1.json", `{"id":"msg-1","type":"status","from":"producer","timestamp":"2024-01-01T00:01:00Z"}`)
	write(t, s, dir+"agent-msg-other-msg-3.json", `{"id":"msg-3","timestamp":"2024-01-01T00:00:30Z","data":{"id":"01HX"}}`)
	write(t, s, dir+"agent-msg-other-msg-4.json", `{"id":"reply-01HX","timestamp":"2024-01-01T00:03:00Z"}`)
	write(t, s, dir+"agent-msg-other-msg-5.json", `{"id":"msg-5","timestamp":"2024-01-01T00:00:10Z","data":"01HX"}`)
	write(t, s, dir+"agent-msg-01HX-msg-6.json", `{not json`)
	write(t, s, dir+"task-01HX.json", `{"id":"task-01HX","type":"task_request"}`)
	write(t, s, dir+"agent-msg-01HY-msg-7.json", `{"id":"msg-7","timestamp":"2024-01-01T00:00:00Z"}`)

	msgs := e.AgentMessages(context.Background(), "01HX")
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"msg-3", "msg-1", "msg-2", "reply-01HX"},
		[]string{msgs[0].ID, msgs[1].ID, msgs[2].ID, msgs[3].ID})
	assert.Equal(t, "agent-msg-other-msg-3.json", msgs[0].Filename)
	assert.Equal(t, "producer", msgs[1].From)

	again := e.AgentMessages(context.Background(), "01HX")
	assert.Equal(t, msgs, again)
}

func TestEngine_AgentMessages_MissingDirectory(t *testing.T) {
	e, _, _ := newTestEngine(t)
	msgs := e.AgentMessages(context.Background(), "01HX")
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestEngine_ProjectLogs(t *testing.T) {
	e, s, _ := newTestEngine(t)
	write(t, s, "logs/task-a.log", "[2024-01-01T00:02:00Z] actor: testing\nnoise\n")
	write(t, s, "logs/task-b.log", "[2024-01-01T00:01:00Z] producer: received\n")

	lines := e.ProjectLogs(context.Background(), []string{"a", "b", "missing"})
	require.Len(t, lines, 2)
	assert.Equal(t, "b", lines[0].TaskID)
	assert.Equal(t, "a", lines[1].TaskID)
}

func TestEngine_Progress(t *testing.T) {
	e, s, _ := newTestEngine(t)
	write(t, s, "logs/task-01HX.log", "[2024-01-01T00:00:00Z] director: reviewing the diff\n")

	p := e.Progress(context.Background(), "01HX", "in_review")
	assert.Equal(t, "01HX", p.TaskID)
	assert.Equal(t, 90, p.Progress)
	assert.Equal(t, "reviewing", p.CurrentStep)
	assert.Len(t, p.Logs, 1)
	assert.Empty(t, p.AgentMessages)
}
