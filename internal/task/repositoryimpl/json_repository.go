package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kazz187/orchestra/internal/collection"
	"github.com/kazz187/orchestra/internal/task"
	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

const collectionKey = "tasks"

// JSONRepository stores all tasks in one collection document. Reads accept
// a bare array; writes always use the {"tasks": [...]} form.
//
// The mutex only orders writers inside this process. The external agent may
// rewrite the same file, in which case the last writer wins.
type JSONRepository struct {
	storage storage.Storage
	path    string
	mu      sync.Mutex
}

var _ task.Repository = (*JSONRepository)(nil)

func NewJSONRepository(s storage.Storage, path string) *JSONRepository {
	return &JSONRepository{storage: s, path: path}
}

func (r *JSONRepository) load(ctx context.Context) ([]*task.Task, error) {
	data, err := r.storage.Read(ctx, r.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError("tasks", err)
	}
	tasks, _, err := collection.Decode[*task.Task](data, collectionKey)
	if err != nil {
		return nil, cerr.WrapDecodeError("tasks", err)
	}
	return tasks, nil
}

func (r *JSONRepository) save(ctx context.Context, tasks []*task.Task) error {
	data, err := collection.Encode(tasks, collectionKey, collection.FormWrapped)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal tasks: %w", err))
	}
	if err := r.storage.Write(ctx, r.path, data); err != nil {
		return cerr.WrapStorageWriteError("tasks", err)
	}
	return nil
}

func (r *JSONRepository) Create(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range tasks {
		if existing.ID == t.ID {
			return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
		}
	}
	return r.save(ctx, append(tasks, t))
}

func (r *JSONRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	tasks, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
}

func (r *JSONRepository) List(ctx context.Context) ([]*task.Task, error) {
	tasks, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		return []*task.Task{}, nil
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (r *JSONRepository) Update(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i, existing := range tasks {
		if existing.ID == t.ID {
			tasks[i] = t
			return r.save(ctx, tasks)
		}
	}
	return cerr.NewError(cerr.NotFound, "task not found", nil)
}

func (r *JSONRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i, existing := range tasks {
		if existing.ID == id {
			return r.save(ctx, append(tasks[:i], tasks[i+1:]...))
		}
	}
	return cerr.NewError(cerr.NotFound, "task not found", nil)
}
