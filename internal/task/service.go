package task

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/orchestra/internal/project"
	"github.com/kazz187/orchestra/internal/tasklog"
)

const TaskServiceName = "orchestra.v1.TaskService"

const (
	ListTasksProcedure       = "/" + TaskServiceName + "/ListTasks"
	CreateTaskProcedure      = "/" + TaskServiceName + "/CreateTask"
	AppendMessageProcedure   = "/" + TaskServiceName + "/AppendMessage"
	GetTaskProgressProcedure = "/" + TaskServiceName + "/GetTaskProgress"
	UpdateTaskProcedure      = "/" + TaskServiceName + "/UpdateTask"
)

// TaskServiceHandler is the RPC surface the dashboard UI and the CLI talk to.
type TaskServiceHandler interface {
	ListTasks(context.Context, *connect.Request[ListTasksRequest]) (*connect.Response[ListTasksResponse], error)
	CreateTask(context.Context, *connect.Request[CreateTaskRequest]) (*connect.Response[CreateTaskResponse], error)
	AppendMessage(context.Context, *connect.Request[AppendMessageRequest]) (*connect.Response[AppendMessageResponse], error)
	GetTaskProgress(context.Context, *connect.Request[GetTaskProgressRequest]) (*connect.Response[tasklog.Progress], error)
	UpdateTask(context.Context, *connect.Request[UpdateTaskByIDRequest]) (*connect.Response[UpdateTaskResponse], error)
}

type ListTasksRequest struct {
	ProjectID string `json:"projectId,omitempty"`
}

type ListTasksResponse struct {
	Tasks    []*Task            `json:"tasks"`
	Projects []*project.Project `json:"projects"`
}

type CreateTaskResponse struct {
	Task *Task `json:"task"`
}

type AppendMessageRequest struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

type AppendMessageResponse struct {
	MessageID string `json:"messageId"`
}

type GetTaskProgressRequest struct {
	TaskID string `json:"taskId"`
}

type UpdateTaskByIDRequest struct {
	ID string `json:"id"`
	UpdateTaskRequest
}

type UpdateTaskResponse struct {
	Task *Task `json:"task"`
}

// NewTaskServiceHandler mounts every TaskService procedure. Handlers should
// be given jsoncodec.Option so plain structs travel as JSON.
func NewTaskServiceHandler(svc TaskServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ListTasksProcedure, connect.NewUnaryHandler(ListTasksProcedure, svc.ListTasks, opts...))
	mux.Handle(CreateTaskProcedure, connect.NewUnaryHandler(CreateTaskProcedure, svc.CreateTask, opts...))
	mux.Handle(AppendMessageProcedure, connect.NewUnaryHandler(AppendMessageProcedure, svc.AppendMessage, opts...))
	mux.Handle(GetTaskProgressProcedure, connect.NewUnaryHandler(GetTaskProgressProcedure, svc.GetTaskProgress, opts...))
	mux.Handle(UpdateTaskProcedure, connect.NewUnaryHandler(UpdateTaskProcedure, svc.UpdateTask, opts...))
	return "/" + TaskServiceName + "/", mux
}
