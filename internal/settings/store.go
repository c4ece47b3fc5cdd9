package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

const maxPatchBytes = 64 << 10

// Store is the process-wide settings holder. The file is read once and
// cached; every change is written back before it becomes visible.
type Store struct {
	storage storage.Storage
	path    string

	mu     sync.Mutex
	cached *Settings
}

func NewStore(s storage.Storage, path string) *Store {
	return &Store{storage: s, path: path}
}

func (s *Store) Get(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx)
}

func (s *Store) getLocked(ctx context.Context) (Settings, error) {
	if s.cached != nil {
		return *s.cached, nil
	}
	loaded := Default()
	data, err := s.storage.Read(ctx, s.path)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return Settings{}, cerr.WrapStorageReadError("settings", err)
	default:
		// Fields absent from the file keep their defaults.
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return Settings{}, cerr.WrapDecodeError("settings", err)
		}
	}
	s.cached = &loaded
	return loaded, nil
}

// Update deep-merges a JSON patch such as {"polling":{"chatInterval":500}}
// onto the current settings.
func (s *Store) Update(ctx context.Context, patch []byte) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.getLocked(ctx)
	if err != nil {
		return Settings{}, err
	}
	if err := json.Unmarshal(patch, &next); err != nil {
		return Settings{}, cerr.NewError(cerr.InvalidArgument, "invalid settings", fmt.Errorf("failed to decode settings patch: %w", err))
	}
	if msgs := next.Validate(); len(msgs) > 0 {
		cErr := cerr.NewError(cerr.InvalidArgument, "invalid settings", nil)
		for _, m := range msgs {
			cErr.AddDetailMessage(m)
		}
		return Settings{}, cErr
	}
	if err := s.saveLocked(ctx, next); err != nil {
		return Settings{}, err
	}
	return next, nil
}

func (s *Store) Reset(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def := Default()
	if err := s.saveLocked(ctx, def); err != nil {
		return Settings{}, err
	}
	return def, nil
}

func (s *Store) saveLocked(ctx context.Context, v Settings) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal settings: %w", err))
	}
	if err := s.storage.Write(ctx, s.path, data); err != nil {
		return cerr.WrapStorageWriteError("settings", err)
	}
	s.cached = &v
	return nil
}

type UpdateResponse struct {
	Success  bool     `json:"success"`
	Settings Settings `json:"settings"`
}

func (s *Store) Routes(r chi.Router) {
	r.Get("/settings", s.handleGet)
	r.Put("/settings", s.handleUpdate)
	r.Delete("/settings", s.handleReset)
}

func (s *Store) handleGet(w http.ResponseWriter, r *http.Request) {
	v, err := s.Get(r.Context())
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), v)
}

func (s *Store) handleUpdate(w http.ResponseWriter, r *http.Request) {
	patch, err := readBody(r)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	v, err := s.Update(r.Context(), patch)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), &UpdateResponse{Success: true, Settings: v})
}

func (s *Store) handleReset(w http.ResponseWriter, r *http.Request) {
	v, err := s.Reset(r.Context())
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), &UpdateResponse{Success: true, Settings: v})
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPatchBytes))
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid request body", fmt.Errorf("failed to read settings patch: %w", err))
	}
	return data, nil
}
