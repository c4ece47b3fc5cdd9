package logwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/orchestra/internal/eventbus"
	"github.com/kazz187/orchestra/internal/tasklog"
)

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func nextLine(t *testing.T, events <-chan *eventbus.Event) tasklog.LogLine {
	t.Helper()
	select {
	case ev := <-events:
		require.Equal(t, eventbus.EventTypeLog, ev.Type)
		l, ok := ev.Payload.(tasklog.LogLine)
		require.True(t, ok)
		assert.Equal(t, l.TaskID, ev.ResourceID)
		return l
	case <-time.After(5 * time.Second):
		t.Fatal("no log event published")
		return tasklog.LogLine{}
	}
}

func TestWatcher_TailsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "task-01HX.log")
	appendFile(t, existing, "[2024-01-01T00:00:00Z] producer: received\n")

	bus := eventbus.New()
	_, events := bus.Subscribe(16)
	w := New(dir, bus)
	fw, err := w.start()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.loop(ctx, fw) }()

	appendFile(t, existing, "[2024-01-01T00:05:00Z] actor: implementing\nhalf a ")
	l := nextLine(t, events)
	assert.Equal(t, "01HX", l.TaskID)
	assert.Equal(t, "actor", l.Agent)
	assert.Equal(t, "implementing", l.Message)
	assert.Equal(t, "task-01HX.log", l.Source)
	assert.Equal(t, 2, l.Line)

	appendFile(t, existing, "line\n")
	l = nextLine(t, events)
	assert.Equal(t, "half a line", l.Message)
	assert.Equal(t, "task-01HX", l.Agent)
	assert.Equal(t, 3, l.Line)

	appendFile(t, filepath.Join(dir, "system.log"), "ignored\n")
	appendFile(t, filepath.Join(dir, "task-01HY.log"), "[2024-01-01T00:06:00Z] director: planning\n")
	l = nextLine(t, events)
	assert.Equal(t, "01HY", l.TaskID)
	assert.Equal(t, 1, l.Line)

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_StartSkipsPartialTail(t *testing.T) {
	dir := t.TempDir()
	appendFile(t, filepath.Join(dir, "task-a.log"), "one\ntwo\nthr")

	w := New(dir, eventbus.New())
	fw, err := w.start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Close() })

	tl := w.tails["task-a.log"]
	require.NotNil(t, tl)
	assert.Equal(t, int64(len("one\ntwo\n")), tl.offset)
	assert.Equal(t, 2, tl.line)
}

func TestWatcher_TruncationRestarts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task-a.log")
	appendFile(t, path, "first line that is long\n")

	bus := eventbus.New()
	_, events := bus.Subscribe(16)
	w := New(dir, bus)
	fw, err := w.start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Close() })

	require.NoError(t, os.WriteFile(path, []byte("new\n"), 0o644))
	require.NoError(t, w.readNew("task-a.log", "a"))

	l := nextLine(t, events)
	assert.Equal(t, "new", l.Message)
	assert.Equal(t, 1, l.Line)
}
