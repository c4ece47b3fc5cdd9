// Package mailbox hands work to the external agent. Every request becomes one
// immutable JSON file in a directory the agent polls; the file names and
// fields below are the contract the agent depends on.
package mailbox

import (
	"encoding/json"
	"fmt"
	"time"
)

type MessageType string

const (
	TypeTaskRequest MessageType = "task_request"
	TypeTaskUpdate  MessageType = "task_update"
)

const (
	Sender              = "web_dashboard"
	Recipient           = "producer"
	ActionAppendMessage = "append_message"
)

// TimestampLayout is ISO 8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Envelope struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TaskUpdate is the payload of a task_update message.
type TaskUpdate struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

func TaskRequestID(taskID string) string {
	return "task-" + taskID
}

func TaskUpdateID(taskID string, at time.Time) string {
	return fmt.Sprintf("msg-%s-%d", taskID, at.UnixMilli())
}

// FileName is the mailbox file an envelope is stored under.
func FileName(id string) string {
	return id + ".json"
}

func newEnvelope(id string, typ MessageType, data any, at time.Time) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return &Envelope{
		ID:        id,
		Type:      typ,
		From:      Sender,
		To:        Recipient,
		Timestamp: at.UTC().Format(TimestampLayout),
		Data:      raw,
	}, nil
}

// NewTaskRequest wraps a full task record for the agent.
func NewTaskRequest(taskID string, task any, at time.Time) (*Envelope, error) {
	return newEnvelope(TaskRequestID(taskID), TypeTaskRequest, task, at)
}

// NewTaskUpdate carries a follow-up message for an existing task.
func NewTaskUpdate(taskID, message string, at time.Time) (*Envelope, error) {
	return newEnvelope(TaskUpdateID(taskID, at), TypeTaskUpdate, TaskUpdate{
		TaskID:  taskID,
		Message: message,
		Action:  ActionAppendMessage,
	}, at)
}

// DecodeData unmarshals the payload into v.
func (e *Envelope) DecodeData(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload of %s: %w", e.Type, e.ID, err)
	}
	return nil
}
