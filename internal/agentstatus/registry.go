// Package agentstatus tracks the agents the external runner reports in
// communication/agent_status.json.
package agentstatus

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/kazz187/orchestra/internal/collection"
	"github.com/kazz187/orchestra/internal/eventbus"
	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

type AgentType string

const (
	TypeProducer AgentType = "producer"
	TypeDirector AgentType = "director"
	TypeActor    AgentType = "actor"
	TypeSystem   AgentType = "system"
)

type State string

const (
	StateActive  State = "active"
	StateIdle    State = "idle"
	StateWorking State = "working"
	StateError   State = "error"
	StateOffline State = "offline"
)

type AgentStatus struct {
	ID          string    `json:"id"`
	Type        AgentType `json:"type"`
	Name        string    `json:"name"`
	Status      State     `json:"status"`
	CurrentTask string    `json:"currentTask,omitempty"`
	LastSeen    string    `json:"lastSeen"`
	PID         int       `json:"pid,omitempty"`
}

// Registry caches the last reported status of every agent. Agents missing
// from a later report keep their last known status.
type Registry struct {
	storage  storage.Storage
	path     string
	interval time.Duration
	eventBus *eventbus.Bus

	mu     sync.RWMutex
	agents map[string]AgentStatus
}

func NewRegistry(s storage.Storage, path string, interval time.Duration, eventBus *eventbus.Bus) *Registry {
	return &Registry{
		storage:  s,
		path:     path,
		interval: interval,
		eventBus: eventBus,
		agents:   make(map[string]AgentStatus),
	}
}

// Refresh reloads the status file and publishes the agent list when it
// changed. A missing file leaves the registry as it is.
func (r *Registry) Refresh(ctx context.Context) error {
	data, err := r.storage.Read(ctx, r.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return cerr.WrapStorageReadError("agent status", err)
	}
	reported, _, err := collection.Decode[AgentStatus](data, "agents")
	if err != nil {
		return cerr.WrapDecodeError("agent status", err)
	}

	r.mu.Lock()
	before := r.listLocked()
	for _, a := range reported {
		if a.ID == "" {
			continue
		}
		r.agents[a.ID] = a
	}
	after := r.listLocked()
	r.mu.Unlock()

	if !reflect.DeepEqual(before, after) {
		r.eventBus.PublishNew(eventbus.EventTypeAgentsStatus, "", after, nil)
	}
	return nil
}

// Run refreshes on every tick until ctx is done. Read errors are logged
// and retried on the next tick.
func (r *Registry) Run(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "failed to refresh agent status", "error", err)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				slog.WarnContext(ctx, "failed to refresh agent status", "error", err)
			}
		}
	}
}

// List returns the known agents ordered by id.
func (r *Registry) List() []AgentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []AgentStatus {
	out := make([]AgentStatus, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
