package tasklog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lines(messages ...string) []LogLine {
	out := make([]LogLine, len(messages))
	for i, m := range messages {
		out[i] = LogLine{Message: m}
	}
	return out
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name    string
		logs    []LogLine
		status  string
		percent int
		step    string
	}{
		{"completed ignores logs", lines("Planning the work"), "completed", 100, "completed"},
		{"rejected", lines("testing"), "rejected", 0, "rejected"},
		{"no logs", nil, "pending", 0, "waiting"},
		{"no keyword", lines("hello", "world"), "in_progress", 0, "waiting"},
		{"most recent wins", lines("Received", "Testing the build", "planning next"), "in_progress", 40, "planning"},
		{"case insensitive", lines("REVIEWING"), "in_review", 90, "reviewing"},
		{"table order within a line", lines("analyzing before implementing"), "in_progress", 25, "analyzing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			percent, step := ComputeProgress(tt.logs, tt.status)
			assert.Equal(t, tt.percent, percent)
			assert.Equal(t, tt.step, step)
		})
	}
}
