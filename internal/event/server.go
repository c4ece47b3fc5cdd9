// Package event pushes bus events to dashboard clients over WebSocket.
package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/kazz187/orchestra/internal/agentstatus"
	"github.com/kazz187/orchestra/internal/eventbus"
)

const (
	subscriberBuffer = 256
	writeTimeout     = 15 * time.Second
)

type AgentLister interface {
	List() []agentstatus.AgentStatus
}

type Envelope struct {
	Type eventbus.EventType `json:"type"`
	Data any                `json:"data,omitempty"`
}

type Server struct {
	eventBus *eventbus.Bus
	agents   AgentLister
}

func NewServer(eventBus *eventbus.Bus, agents AgentLister) *Server {
	return &Server{eventBus: eventBus, agents: agents}
}

// ServeHTTP upgrades the request and streams events until the client goes
// away. ?taskId=<id> narrows the stream to one task; agent updates always
// pass.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.WarnContext(r.Context(), "failed to accept websocket", "error", err)
		return
	}
	defer ws.CloseNow()

	// Subscribe before the snapshot so nothing published in between is lost.
	subID, ch := s.eventBus.Subscribe(subscriberBuffer)
	defer s.eventBus.Unsubscribe(subID)

	ctx := ws.CloseRead(r.Context())
	taskID := r.URL.Query().Get("taskId")

	if err := write(ctx, ws, Envelope{Type: eventbus.EventTypeAgentsStatus, Data: s.agents.List()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			ws.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-ch:
			if !ok {
				ws.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if !matches(ev, taskID) {
				continue
			}
			if err := write(ctx, ws, Envelope{Type: ev.Type, Data: ev.Payload}); err != nil {
				slog.DebugContext(ctx, "websocket write failed", "error", err)
				return
			}
		}
	}
}

func matches(ev *eventbus.Event, taskID string) bool {
	if taskID == "" || ev.Type == eventbus.EventTypeAgentsStatus {
		return true
	}
	return ev.ResourceID == taskID
}

func write(ctx context.Context, ws *websocket.Conn, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
