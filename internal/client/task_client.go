// Package client is the Connect client for orchestra.v1.TaskService.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/kazz187/orchestra/internal/task"
	"github.com/kazz187/orchestra/internal/tasklog"
	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/jsoncodec"
)

type TaskClient struct {
	listTasks       *connect.Client[task.ListTasksRequest, task.ListTasksResponse]
	createTask      *connect.Client[task.CreateTaskRequest, task.CreateTaskResponse]
	appendMessage   *connect.Client[task.AppendMessageRequest, task.AppendMessageResponse]
	getTaskProgress *connect.Client[task.GetTaskProgressRequest, tasklog.Progress]
	updateTask      *connect.Client[task.UpdateTaskByIDRequest, task.UpdateTaskResponse]
}

// NewTaskClient talks to the server at baseURL. apiKey may be empty.
func NewTaskClient(httpClient connect.HTTPClient, baseURL, apiKey string) *TaskClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	interceptors := []connect.Interceptor{cerr.NewConvertConnectErrorInterceptor()}
	if apiKey != "" {
		interceptors = append(interceptors, newAuthInterceptor(apiKey))
	}
	opts := []connect.ClientOption{
		jsoncodec.Option(),
		connect.WithInterceptors(interceptors...),
	}
	return &TaskClient{
		listTasks: connect.NewClient[task.ListTasksRequest, task.ListTasksResponse](
			httpClient, baseURL+task.ListTasksProcedure, opts...),
		createTask: connect.NewClient[task.CreateTaskRequest, task.CreateTaskResponse](
			httpClient, baseURL+task.CreateTaskProcedure, opts...),
		appendMessage: connect.NewClient[task.AppendMessageRequest, task.AppendMessageResponse](
			httpClient, baseURL+task.AppendMessageProcedure, opts...),
		getTaskProgress: connect.NewClient[task.GetTaskProgressRequest, tasklog.Progress](
			httpClient, baseURL+task.GetTaskProgressProcedure, opts...),
		updateTask: connect.NewClient[task.UpdateTaskByIDRequest, task.UpdateTaskResponse](
			httpClient, baseURL+task.UpdateTaskProcedure, opts...),
	}
}

func (c *TaskClient) ListTasks(ctx context.Context, projectID string) (*task.ListTasksResponse, error) {
	resp, err := c.listTasks.CallUnary(ctx, connect.NewRequest(&task.ListTasksRequest{ProjectID: projectID}))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return resp.Msg, nil
}

func (c *TaskClient) CreateTask(ctx context.Context, req *task.CreateTaskRequest) (*task.Task, error) {
	resp, err := c.createTask.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return resp.Msg.Task, nil
}

// AppendMessage returns the id of the mailbox message the server wrote.
func (c *TaskClient) AppendMessage(ctx context.Context, taskID, message string) (string, error) {
	resp, err := c.appendMessage.CallUnary(ctx, connect.NewRequest(&task.AppendMessageRequest{
		TaskID:  taskID,
		Message: message,
	}))
	if err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}
	return resp.Msg.MessageID, nil
}

func (c *TaskClient) GetTaskProgress(ctx context.Context, taskID string) (*tasklog.Progress, error) {
	resp, err := c.getTaskProgress.CallUnary(ctx, connect.NewRequest(&task.GetTaskProgressRequest{TaskID: taskID}))
	if err != nil {
		return nil, fmt.Errorf("failed to get task progress: %w", err)
	}
	return resp.Msg, nil
}

func (c *TaskClient) UpdateTask(ctx context.Context, req *task.UpdateTaskByIDRequest) (*task.Task, error) {
	resp, err := c.updateTask.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return resp.Msg.Task, nil
}

// authInterceptor adds the API key to outgoing requests.
type authInterceptor struct {
	apiKey string
}

func newAuthInterceptor(apiKey string) *authInterceptor {
	return &authInterceptor{apiKey: apiKey}
}

func (i *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		req.Header().Set("Authorization", "Bearer "+i.apiKey)
		return next(ctx, req)
	}
}

func (i *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set("Authorization", "Bearer "+i.apiKey)
		return conn
	}
}

func (i *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
