package transcript

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/orchestra/internal/tasklog"
)

type fileLine struct {
	ts, agent, msg string
	line           int
}

// poll mimics one engine read: every line gets a freshly minted id.
func poll(source string, in ...fileLine) []tasklog.LogLine {
	out := make([]tasklog.LogLine, 0, len(in))
	for _, f := range in {
		out = append(out, tasklog.LogLine{
			ID:        ulid.Make().String(),
			Timestamp: f.ts,
			Agent:     f.agent,
			Message:   f.msg,
			Source:    source,
			Line:      f.line,
		})
	}
	return out
}

func messages(lines []tasklog.LogLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Message
	}
	return out
}

func TestMerger_ThreePolls(t *testing.T) {
	a := fileLine{"2024-01-01T00:00:00Z", "producer", "received the task", 1}
	b := fileLine{"2024-01-01T00:01:00Z", "director", "planning", 2}
	c := fileLine{"2024-01-01T00:02:00Z", "actor", "implementing now", 3}

	m := NewMerger(DefaultDedupWindow)

	added := m.Merge(poll("task-1.log", a, b))
	assert.Equal(t, []string{"received the task", "planning"}, messages(added))

	added = m.Merge(poll("task-1.log", a, b, c))
	assert.Equal(t, []string{"implementing now"}, messages(added))
	assert.Equal(t, []string{"received the task", "planning", "implementing now"}, messages(m.Lines()))

	added = m.Merge(poll("task-1.log", a, b, c))
	assert.Empty(t, added)
	assert.Len(t, m.Lines(), 3)
}

func TestMerger_WatermarkAdvances(t *testing.T) {
	m := NewMerger(0)
	first := poll("task-1.log", fileLine{"2024-01-01T00:00:00Z", "producer", "one", 1})
	m.Merge(first)
	assert.Equal(t, first[0].ID, m.LastID())

	// A line whose id does not pass the watermark is ignored even if new.
	stale := first[0]
	stale.Line = 2
	stale.Message = "two"
	assert.Empty(t, m.Merge([]tasklog.LogLine{stale}))

	next := poll("task-1.log", fileLine{"2024-01-01T00:00:01Z", "producer", "two", 2})
	assert.Len(t, m.Merge(next), 1)
	assert.Equal(t, next[0].ID, m.LastID())
}

func TestMerger_SuppressesEchoWithinWindow(t *testing.T) {
	m := NewMerger(DefaultDedupWindow)

	m.Merge(poll("task-1.log", fileLine{"2024-01-01T00:00:00Z", "user", "User: please add tests", 1}))

	echo := poll("agent-msg-1-msg-1.json", fileLine{"2024-01-01T00:00:03Z", "user", "User: please add tests", 0})
	assert.Empty(t, m.Merge(echo))

	later := poll("task-1.log", fileLine{"2024-01-01T00:10:00Z", "user", "User: please add tests", 2})
	assert.Len(t, m.Merge(later), 1)
	assert.Len(t, m.Lines(), 2)
}

func TestMerger_KeepsTimestampOrder(t *testing.T) {
	m := NewMerger(DefaultDedupWindow)
	m.Merge(poll("task-1.log",
		fileLine{"2024-01-01T00:00:00Z", "producer", "received", 1},
		fileLine{"2024-01-01T00:05:00Z", "actor", "testing", 2},
	))

	added := m.Merge(append(
		poll("system.log", fileLine{"2024-01-01T00:03:00Z", "system", "dispatched", 7}),
		poll("task-1.log", fileLine{"2024-01-01T00:06:00Z", "director", "reviewing", 3})...,
	))
	assert.Equal(t, []string{"dispatched", "reviewing"}, messages(added))
	assert.Equal(t, []string{"received", "dispatched", "testing", "reviewing"}, messages(m.Lines()))
}

func TestToChatMessage(t *testing.T) {
	user := ToChatMessage(tasklog.LogLine{ID: "01A", Agent: "user", Message: "User: hello", Timestamp: "t"})
	assert.Equal(t, ChatMessage{ID: "msg-01A", Role: RoleUser, Content: "hello", Timestamp: "t"}, user)

	ai := ToChatMessage(tasklog.LogLine{ID: "01B", Agent: "ai", Message: "AI: hi there"})
	assert.Equal(t, RoleAssistant, ai.Role)
	assert.Equal(t, "hi there", ai.Content)

	other := ToChatMessage(tasklog.LogLine{ID: "01C", Agent: "director", Message: "planning"})
	assert.Equal(t, RoleSystem, other.Role)
	assert.Equal(t, "director", other.AgentType)
	assert.Equal(t, "planning", other.Content)

	msgs := ToChatMessages(nil)
	require.NotNil(t, msgs)
	assert.Empty(t, msgs)
}
