package task

import (
	"encoding/json"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusInReview, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

var nextStatus = map[Status]Status{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusInReview,
	StatusInReview:   StatusCompleted,
}

// CanTransition reports whether a task may move from s to to. Tasks advance
// one step at a time and may be rejected from any non-terminal status.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	if s.Terminal() {
		return false
	}
	return to == StatusRejected || nextStatus[s] == to
}

// Task is the record shared with the external agent through data/tasks.json.
type Task struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	ProjectID          string    `json:"projectId"`
	Priority           Priority  `json:"priority"`
	Tags               []string  `json:"tags"`
	Requirements       string    `json:"requirements"`
	AcceptanceCriteria string    `json:"acceptanceCriteria"`
	Status             Status    `json:"status"`
	AssignedAgent      string    `json:"assignedAgent,omitempty"`
	GitHubIssueURL     string    `json:"githubIssueUrl,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	// Extra holds members the external agent adds (startedBy, result,
	// progress, ...). They are written back unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

type CreateTaskRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	ProjectID          string   `json:"projectId"`
	Priority           Priority `json:"priority"`
	Tags               []string `json:"tags"`
	Requirements       string   `json:"requirements"`
	AcceptanceCriteria string   `json:"acceptanceCriteria"`
}

// UpdateTaskRequest holds the fields to change; nil fields are left as is.
type UpdateTaskRequest struct {
	Title              *string   `json:"title,omitempty"`
	Description        *string   `json:"description,omitempty"`
	Priority           *Priority `json:"priority,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	Requirements       *string   `json:"requirements,omitempty"`
	AcceptanceCriteria *string   `json:"acceptanceCriteria,omitempty"`
	Status             *Status   `json:"status,omitempty"`
	AssignedAgent      *string   `json:"assignedAgent,omitempty"`
	GitHubIssueURL     *string   `json:"githubIssueUrl,omitempty"`
}
