package tasklog

import "encoding/json"

// LogLine is one narrated step of a task, either read from a log file or
// synthesized from another source.
type LogLine struct {
	// ID is minted when the line is read, so it changes between reads.
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Agent     string `json:"agent"`
	Message   string `json:"message"`
	Raw       string `json:"raw"`
	TaskID    string `json:"taskId,omitempty"`
	// Source and Line locate the line in its file and stay stable across
	// reads.
	Source string `json:"source,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// AgentMessage is a structured message the external agent dropped into the
// message directory. Only the envelope fields are interpreted.
type AgentMessage struct {
	ID        string          `json:"id"`
	Type      string          `json:"type,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Filename  string          `json:"filename"`
}

type Progress struct {
	TaskID        string         `json:"taskId"`
	Status        string         `json:"status"`
	Progress      int            `json:"progress"`
	CurrentStep   string         `json:"currentStep"`
	Logs          []LogLine      `json:"logs"`
	AgentMessages []AgentMessage `json:"agentMessages"`
}
