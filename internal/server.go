package internal

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/orchestra/internal/agentstatus"
	"github.com/kazz187/orchestra/internal/config"
	"github.com/kazz187/orchestra/internal/event"
	"github.com/kazz187/orchestra/internal/project"
	"github.com/kazz187/orchestra/internal/settings"
	"github.com/kazz187/orchestra/internal/task"
	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/clog"
	"github.com/kazz187/orchestra/pkg/jsoncodec"
)

type Server struct {
	server        *http.Server
	env           *config.Env
	projectServer *project.Server
	taskServer    *task.Server
	settingsStore *settings.Store
	agents        *agentstatus.Registry
	eventServer   *event.Server
}

func NewServer(
	env *config.Env,
	projectServer *project.Server,
	taskServer *task.Server,
	settingsStore *settings.Store,
	agents *agentstatus.Registry,
	eventServer *event.Server,
) *Server {
	return &Server{
		server: &http.Server{
			Addr:              net.JoinHostPort(env.HTTPHost, env.HTTPPort),
			ReadHeaderTimeout: 10 * time.Second,
		},
		env:           env,
		projectServer: projectServer,
		taskServer:    taskServer,
		settingsStore: settingsStore,
		agents:        agents,
		eventServer:   eventServer,
	}
}

// ListenAndServe starts the HTTP server. ctx becomes the base context of every
// request, so cancelling it also ends open WebSocket streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	slog.Info("starting server", "addr", s.server.Addr)
	s.server.Handler = s.Handler()
	s.server.BaseContext = func(_ net.Listener) context.Context { return ctx }
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(clog.WithChiFilter(func(r *http.Request) bool {
				return r.URL.Path != "/api/health"
			})),
			cerr.NewConvertConnectErrorChiMiddleware(),
		)
		s.projectServer.Routes(r)
		s.taskServer.Routes(r)
		s.settingsStore.Routes(r)
		r.Get("/agents", s.handleAgents)
		r.Get("/health", handleHealth)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	// The upgrade bypasses the JSON middleware: it owns the connection.
	mux.Handle("/api/ws", s.eventServer)
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker(task.TaskServiceName)))
	mux.Handle(task.NewTaskServiceHandler(s.taskServer,
		connect.WithInterceptors(s.interceptors()...),
		jsoncodec.Option(),
	))

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{})
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), &healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Services: map[string]string{
			"api":       "running",
			"websocket": "running",
		},
	})
}

type agentsResponse struct {
	Agents []agentstatus.AgentStatus `json:"agents"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), &agentsResponse{Agents: s.agents.List()})
}

func (s *Server) interceptors() []connect.Interceptor {
	return []connect.Interceptor{
		clog.NewSlogConnectInterceptor(),
		cerr.NewConvertConnectErrorInterceptor(),
	}
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	if s.env.APIKey == "" {
		return next
	}
	want := []byte(s.env.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/api/health", "/" + grpchealth.HealthV1ServiceName + "/Check":
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), want) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
