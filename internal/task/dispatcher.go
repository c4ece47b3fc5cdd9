package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/orchestra/internal/eventbus"
	"github.com/kazz187/orchestra/internal/mailbox"
	"github.com/kazz187/orchestra/internal/project"
	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/clog"
)

// maxNameAttempts bounds how far a message timestamp is bumped to find a
// free mailbox name.
const maxNameAttempts = 1000

// Dispatcher records tasks and hands them, and any follow-up messages, to
// the external agent through the mailbox.
type Dispatcher struct {
	repo      Repository
	projects  project.Repository
	publisher mailbox.Publisher
	eventBus  *eventbus.Bus
	now       func() time.Time
}

func NewDispatcher(repo Repository, projects project.Repository, publisher mailbox.Publisher, eventBus *eventbus.Bus) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		projects:  projects,
		publisher: publisher,
		eventBus:  eventBus,
		now:       time.Now,
	}
}

func (d *Dispatcher) CreateTask(ctx context.Context, req *CreateTaskRequest) (*Task, error) {
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		return nil, cerr.NewRequiredFieldError("projectId")
	}
	if _, err := d.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, invalidPriorityError(priority)
	}

	description := strings.TrimSpace(req.Description)
	title := strings.TrimSpace(req.Title)
	if !IsValidTitle(title, description) {
		source := description
		if source == "" {
			source = title
		}
		title = GenerateTitle(source)
	}
	if description == "" {
		description = title
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	now := d.now().UTC()
	t := &Task{
		ID:                 ulid.Make().String(),
		Title:              title,
		Description:        description,
		ProjectID:          projectID,
		Priority:           priority,
		Tags:               tags,
		Requirements:       req.Requirements,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	clog.AddAttribute(ctx, "task_id", t.ID)

	if err := d.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	env, err := mailbox.NewTaskRequest(t.ID, t, now)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	if err := d.publisher.Publish(ctx, env); err != nil {
		// The agent never saw the task, so it must not stay pending.
		if delErr := d.repo.Delete(ctx, t.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to roll back task", "task_id", t.ID, "error", delErr)
		}
		return nil, err
	}
	slog.InfoContext(ctx, "task sent to producer", "task_id", t.ID, "message_id", env.ID)

	d.eventBus.PublishNew(eventbus.EventTypeTaskCreated, t.ID, t, map[string]string{"project_id": t.ProjectID})
	return t, nil
}

// AppendMessage sends a follow-up message for an existing task. The task
// record itself is left untouched.
func (d *Dispatcher) AppendMessage(ctx context.Context, taskID, message string) (*mailbox.Envelope, error) {
	if strings.TrimSpace(message) == "" {
		return nil, cerr.NewRequiredFieldError("message")
	}
	if _, err := d.repo.Get(ctx, taskID); err != nil {
		return nil, err
	}
	clog.AddAttribute(ctx, "task_id", taskID)

	at := d.now()
	for range maxNameAttempts {
		env, err := mailbox.NewTaskUpdate(taskID, message, at)
		if err != nil {
			return nil, cerr.NewError(cerr.Internal, "server error", err)
		}
		err = d.publisher.Publish(ctx, env)
		if cerr.IsCode(err, cerr.AlreadyExists) {
			at = at.Add(time.Millisecond)
			continue
		}
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "message sent to producer", "task_id", taskID, "message_id", env.ID)
		d.eventBus.PublishNew(eventbus.EventTypeTaskMessage, taskID, mailbox.TaskUpdate{
			TaskID:  taskID,
			Message: message,
			Action:  mailbox.ActionAppendMessage,
		}, map[string]string{"message_id": env.ID})
		return env, nil
	}
	return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("no free message name for task %s", taskID))
}

func (d *Dispatcher) UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*Task, error) {
	t, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	clog.AddAttribute(ctx, "task_id", id)

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, cerr.NewRequiredFieldError("title")
		}
		t.Title = title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, invalidPriorityError(*req.Priority)
		}
		t.Priority = *req.Priority
	}
	if req.Tags != nil {
		t.Tags = req.Tags
	}
	if req.Requirements != nil {
		t.Requirements = *req.Requirements
	}
	if req.AcceptanceCriteria != nil {
		t.AcceptanceCriteria = *req.AcceptanceCriteria
	}
	if req.AssignedAgent != nil {
		t.AssignedAgent = *req.AssignedAgent
	}
	if req.GitHubIssueURL != nil {
		t.GitHubIssueURL = *req.GitHubIssueURL
	}
	if req.Status != nil {
		to := *req.Status
		if !to.Valid() {
			return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown status %q", to), nil)
		}
		if !t.Status.CanTransition(to) {
			return nil, cerr.NewError(cerr.FailedPrecondition,
				fmt.Sprintf("cannot change status from %s to %s", t.Status, to), nil)
		}
		t.Status = to
	}
	t.UpdatedAt = d.now().UTC()

	if err := d.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	d.eventBus.PublishNew(eventbus.EventTypeTaskUpdated, t.ID, t, map[string]string{
		"project_id": t.ProjectID,
		"status":     string(t.Status),
	})
	return t, nil
}

func (d *Dispatcher) GetTask(ctx context.Context, id string) (*Task, error) {
	return d.repo.Get(ctx, id)
}

func (d *Dispatcher) ListTasks(ctx context.Context) ([]*Task, error) {
	return d.repo.List(ctx)
}

func invalidPriorityError(p Priority) *cerr.Error {
	return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown priority %q", p), nil).
		AddDetailMessage("priority must be one of low, medium, high")
}
