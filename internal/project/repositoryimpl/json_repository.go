package repositoryimpl

import (
	"context"
	"errors"
	"fmt"

	"github.com/kazz187/orchestra/internal/collection"
	"github.com/kazz187/orchestra/internal/project"
	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

const collectionKey = "projects"

// JSONRepository keeps every project in a single JSON array shared with the
// external agent, which looks projects up there by id.
type JSONRepository struct {
	storage storage.Storage
	path    string
}

func NewJSONRepository(s storage.Storage, path string) *JSONRepository {
	return &JSONRepository{storage: s, path: path}
}

func (r *JSONRepository) load(ctx context.Context) ([]*project.Project, error) {
	data, err := r.storage.Read(ctx, r.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("projects", err)
	}
	projects, _, err := collection.Decode[*project.Project](data, collectionKey)
	if err != nil {
		return nil, cerr.WrapDecodeError("projects", err)
	}
	return projects, nil
}

func (r *JSONRepository) Create(ctx context.Context, p *project.Project) error {
	projects, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range projects {
		if existing.ID == p.ID {
			return cerr.NewError(cerr.AlreadyExists, "project already exists", nil)
		}
	}
	projects = append([]*project.Project{p}, projects...)
	data, err := collection.Encode(projects, collectionKey, collection.FormArray)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal projects: %w", err))
	}
	if err := r.storage.Write(ctx, r.path, data); err != nil {
		return cerr.WrapStorageWriteError("projects", err)
	}
	return nil
}

func (r *JSONRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	projects, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "project not found", nil)
}

func (r *JSONRepository) List(ctx context.Context) ([]*project.Project, error) {
	projects, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	return projects, nil
}
