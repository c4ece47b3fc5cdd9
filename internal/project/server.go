package project

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/orchestra/pkg/cerr"
)

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Repository  string `json:"repository"`
}

type Server struct {
	repo Repository
	now  func() time.Time
}

func NewServer(repo Repository) *Server {
	return &Server{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/projects", s.handleList)
	r.Post("/projects", s.handleCreate)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	projects, err := s.repo.List(r.Context())
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), projects)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(r.Context(), cerr.InvalidArgument, "invalid request body", fmt.Errorf("failed to decode project: %w", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		cerr.SetJSONError(r.Context(), cerr.NewRequiredFieldError("name"))
		return
	}

	now := s.now().UTC()
	p := &Project{
		ID:          ulid.Make().String(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Repository:  req.Repository,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(r.Context(), p); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusCreated, p)
}
