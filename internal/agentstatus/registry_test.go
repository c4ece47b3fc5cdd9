package agentstatus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/orchestra/internal/eventbus"
	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

const statusPath = "communication/agent_status.json"

func newRegistry(t *testing.T) (*Registry, *storage.LocalStorage, <-chan *eventbus.Event) {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	bus := eventbus.New()
	_, events := bus.Subscribe(8)
	return NewRegistry(s, statusPath, 10*time.Millisecond, bus), s, events
}

func TestRegistry_Refresh(t *testing.T) {
	r, s, events := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Refresh(ctx))
	assert.Empty(t, r.List())
	assert.Empty(t, events)

	require.NoError(t, s.Write(ctx, statusPath, []byte(`[
		{"id":"director-01","type":"director","name":"Director","status":"idle","lastSeen":"2024-01-01T00:00:00Z"},
		{"id":"actor-01","type":"actor","name":"Actor","status":"working","currentTask":"01HX","lastSeen":"2024-01-01T00:00:00Z","pid":4242}
	]`)))
	require.NoError(t, r.Refresh(ctx))

	agents := r.List()
	require.Len(t, agents, 2)
	assert.Equal(t, "actor-01", agents[0].ID)
	assert.Equal(t, StateWorking, agents[0].Status)
	assert.Equal(t, 4242, agents[0].PID)

	ev := <-events
	assert.Equal(t, eventbus.EventTypeAgentsStatus, ev.Type)
	assert.Equal(t, agents, ev.Payload)

	// Unchanged content publishes nothing.
	require.NoError(t, r.Refresh(ctx))
	assert.Empty(t, events)

	// Agents dropped from the file keep their last status.
	require.NoError(t, s.Write(ctx, statusPath, []byte(`{"agents":[{"id":"actor-01","type":"actor","name":"Actor","status":"idle","lastSeen":"2024-01-01T00:01:00Z"}]}`)))
	require.NoError(t, r.Refresh(ctx))
	agents = r.List()
	require.Len(t, agents, 2)
	assert.Equal(t, StateIdle, agents[0].Status)
	assert.Len(t, events, 1)
}

func TestRegistry_RefreshCorrupted(t *testing.T) {
	r, s, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, statusPath, []byte(`not json`)))

	err := r.Refresh(ctx)
	assert.True(t, cerr.IsCode(err, cerr.DataLoss))
}

func TestRegistry_Run(t *testing.T) {
	r, s, events := newRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.NoError(t, s.Write(context.Background(), statusPath, []byte(`[{"id":"producer-01","type":"producer","name":"Producer","status":"active","lastSeen":"now"}]`)))

	select {
	case ev := <-events:
		assert.Equal(t, eventbus.EventTypeAgentsStatus, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("agent status was not published")
	}

	cancel()
	require.NoError(t, <-done)
}
