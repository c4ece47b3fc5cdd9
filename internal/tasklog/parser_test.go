package tasklog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	readTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		ok      bool
		ts      string
		agent   string
		message string
	}{
		{"bracketed", "[2024-01-01T00:00:00Z] producer: received the task", true, "2024-01-01T00:00:00Z", "producer", "received the task"},
		{"colon in message", "[2024-01-01 10:00:00] ai: AI: sure: on it", true, "2024-01-01 10:00:00", "ai", "AI: sure: on it"},
		{"crlf", "[t] user: hi\r", true, "t", "user", "hi"},
		{"plain", "  building wheel  ", true, "2024-06-01T12:00:00.000Z", "task-1", "building wheel"},
		{"missing agent", "[2024-01-01T00:00:00Z] no colon here", true, "2024-06-01T12:00:00.000Z", "task-1", "[2024-01-01T00:00:00Z] no colon here"},
		{"blank", "   ", false, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, ok := ParseLine(tt.raw, "task-1", readTime)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.NotEmpty(t, l.ID)
			assert.Equal(t, LevelInfo, l.Level)
			assert.Equal(t, tt.ts, l.Timestamp)
			assert.Equal(t, tt.agent, l.Agent)
			assert.Equal(t, tt.message, l.Message)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T09:00:00+09:00",
		"2024-01-01T00:00:00.123456",
		"2024-01-01 00:00:00",
		"2024-01-01 00:00:00,123",
	} {
		_, ok := ParseTimestamp(s)
		assert.True(t, ok, s)
	}
	_, ok := ParseTimestamp("yesterday")
	assert.False(t, ok)

	a, _ := ParseTimestamp("2024-01-01T09:00:00+09:00")
	b, _ := ParseTimestamp("2024-01-01T00:00:00Z")
	assert.True(t, a.Equal(b))
}

func TestLogFileNames(t *testing.T) {
	assert.Equal(t, []string{"task-01HX.log"}, LogFileNames("01HX"))
	assert.Equal(t, []string{"task-task-1.log", "task-1.log"}, LogFileNames("task-1"))
}

func TestTaskIDFromLogFile(t *testing.T) {
	id, ok := TaskIDFromLogFile("/var/orchestra/logs/task-01HX.log")
	assert.True(t, ok)
	assert.Equal(t, "01HX", id)

	for _, name := range []string{"system.log", "task-.log", "task-01HX.txt"} {
		_, ok := TaskIDFromLogFile(name)
		assert.False(t, ok, name)
	}
}
