package task

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"

	"github.com/kazz187/orchestra/internal/project"
	"github.com/kazz187/orchestra/internal/tasklog"
	"github.com/kazz187/orchestra/pkg/cerr"
)

const unknownProjectName = "Unknown Project"

var _ TaskServiceHandler = (*Server)(nil)

type Server struct {
	dispatcher *Dispatcher
	projects   project.Repository
	engine     *tasklog.Engine
}

func NewServer(dispatcher *Dispatcher, projects project.Repository, engine *tasklog.Engine) *Server {
	return &Server{
		dispatcher: dispatcher,
		projects:   projects,
		engine:     engine,
	}
}

func (s *Server) ListTasks(ctx context.Context, req *connect.Request[ListTasksRequest]) (*connect.Response[ListTasksResponse], error) {
	resp, err := s.listTasks(ctx, req.Msg.ProjectID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

func (s *Server) CreateTask(ctx context.Context, req *connect.Request[CreateTaskRequest]) (*connect.Response[CreateTaskResponse], error) {
	t, err := s.dispatcher.CreateTask(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&CreateTaskResponse{Task: t}), nil
}

func (s *Server) AppendMessage(ctx context.Context, req *connect.Request[AppendMessageRequest]) (*connect.Response[AppendMessageResponse], error) {
	if req.Msg.TaskID == "" {
		return nil, cerr.NewRequiredFieldError("taskId")
	}
	env, err := s.dispatcher.AppendMessage(ctx, req.Msg.TaskID, req.Msg.Message)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&AppendMessageResponse{MessageID: env.ID}), nil
}

func (s *Server) GetTaskProgress(ctx context.Context, req *connect.Request[GetTaskProgressRequest]) (*connect.Response[tasklog.Progress], error) {
	p, err := s.progress(ctx, req.Msg.TaskID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(p), nil
}

func (s *Server) UpdateTask(ctx context.Context, req *connect.Request[UpdateTaskByIDRequest]) (*connect.Response[UpdateTaskResponse], error) {
	if req.Msg.ID == "" {
		return nil, cerr.NewRequiredFieldError("id")
	}
	t, err := s.dispatcher.UpdateTask(ctx, req.Msg.ID, &req.Msg.UpdateTaskRequest)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&UpdateTaskResponse{Task: t}), nil
}

func (s *Server) listTasks(ctx context.Context, projectID string) (*ListTasksResponse, error) {
	tasks, err := s.dispatcher.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if projectID != "" {
		filtered := make([]*Task, 0, len(tasks))
		for _, t := range tasks {
			if t.ProjectID == projectID {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	return &ListTasksResponse{Tasks: tasks, Projects: projects}, nil
}

// progress fails only when the task is unknown; missing logs just make the
// transcript shorter.
func (s *Server) progress(ctx context.Context, taskID string) (*tasklog.Progress, error) {
	if taskID == "" {
		return nil, cerr.NewRequiredFieldError("taskId")
	}
	t, err := s.dispatcher.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.engine.Progress(ctx, t.ID, string(t.Status)), nil
}

type appendMessageBody struct {
	Message string `json:"message"`
}

type ProjectTaskLogs struct {
	TaskID    string            `json:"taskId"`
	TaskTitle string            `json:"taskTitle"`
	ProjectID string            `json:"projectId"`
	Entries   []tasklog.LogLine `json:"entries"`
}

type ProjectLogsResponse struct {
	ProjectID    string            `json:"projectId"`
	ProjectName  string            `json:"projectName"`
	Logs         []ProjectTaskLogs `json:"logs"`
	TotalEntries int               `json:"totalEntries"`
}

// Routes registers the REST endpoints. Responses are rendered by the cerr
// chi middleware.
func (s *Server) Routes(r chi.Router) {
	r.Get("/tasks", s.handleList)
	r.Post("/tasks", s.handleCreate)
	r.Put("/tasks/{id}", s.handleUpdate)
	r.Post("/tasks/{id}/messages", s.handleAppendMessage)
	r.Get("/tasks/{id}/logs", s.handleProgress)
	r.Get("/projects/{id}/logs", s.handleProjectLogs)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	resp, err := s.listTasks(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), resp)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	t, err := s.dispatcher.CreateTask(r.Context(), &req)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusCreated, &CreateTaskResponse{Task: t})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	t, err := s.dispatcher.UpdateTask(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), &UpdateTaskResponse{Task: t})
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var body appendMessageBody
	if err := decodeBody(r, &body); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	env, err := s.dispatcher.AppendMessage(r.Context(), chi.URLParam(r, "id"), body.Message)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), &AppendMessageResponse{MessageID: env.ID})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), p)
}

func (s *Server) handleProjectLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")

	resp := &ProjectLogsResponse{
		ProjectID:   projectID,
		ProjectName: unknownProjectName,
		Logs:        []ProjectTaskLogs{},
	}
	p, err := s.projects.Get(ctx, projectID)
	switch {
	case err == nil:
		resp.ProjectName = p.Name
	case !cerr.IsCode(err, cerr.NotFound):
		cerr.SetJSONError(ctx, err)
		return
	}

	tasks, err := s.dispatcher.ListTasks(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	for _, t := range tasks {
		if t.ProjectID != projectID {
			continue
		}
		entries := s.engine.ProjectLogs(ctx, []string{t.ID})
		if len(entries) == 0 {
			continue
		}
		resp.Logs = append(resp.Logs, ProjectTaskLogs{
			TaskID:    t.ID,
			TaskTitle: t.Title,
			ProjectID: t.ProjectID,
			Entries:   entries,
		})
		resp.TotalEntries += len(entries)
	}
	cerr.SetJSONResponse(ctx, resp)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", fmt.Errorf("failed to decode request: %w", err))
	}
	return nil
}
