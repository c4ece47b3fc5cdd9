package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"

	server "github.com/kazz187/orchestra/internal"
	"github.com/kazz187/orchestra/internal/agentstatus"
	"github.com/kazz187/orchestra/internal/config"
	"github.com/kazz187/orchestra/internal/event"
	"github.com/kazz187/orchestra/internal/eventbus"
	"github.com/kazz187/orchestra/internal/logwatch"
	"github.com/kazz187/orchestra/internal/mailbox"
	"github.com/kazz187/orchestra/internal/project"
	projectrepo "github.com/kazz187/orchestra/internal/project/repositoryimpl"
	"github.com/kazz187/orchestra/internal/settings"
	"github.com/kazz187/orchestra/internal/task"
	taskrepo "github.com/kazz187/orchestra/internal/task/repositoryimpl"
	"github.com/kazz187/orchestra/internal/tasklog"
	"github.com/kazz187/orchestra/pkg/clog"
	"github.com/kazz187/orchestra/pkg/panicerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewConnectTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, env); err != nil {
		slog.Error("orchestra-server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("orchestra-server stopped")
}

func run(ctx context.Context, env *config.Env) error {
	store, err := newStorage(ctx, env)
	if err != nil {
		return err
	}

	bus := eventbus.New()

	projectRepo := projectrepo.NewJSONRepository(store, env.ProjectsFile)
	taskRepo := taskrepo.NewJSONRepository(store, env.TasksFile)
	publisher := mailbox.NewStoragePublisher(store, env.MessagesDir)
	engine := tasklog.NewEngine(store, tasklog.Layout{
		LogsDir:     env.LogsDir,
		SystemLog:   env.SystemLog,
		MessagesDir: env.MessagesDir,
	})
	registry := agentstatus.NewRegistry(store, env.AgentStatusFile, env.AgentStatusInterval, bus)
	settingsStore := settings.NewStore(store, env.SettingsFile)

	dispatcher := task.NewDispatcher(taskRepo, projectRepo, publisher, bus)
	srv := server.NewServer(
		env,
		project.NewServer(projectRepo),
		task.NewServer(dispatcher, projectRepo, engine),
		settingsStore,
		registry,
		event.NewServer(bus, registry),
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		return serve(ctx, srv)
	}))
	p.Go(panicerr.SafeContext(registry.Run))

	switch {
	case !env.LogWatch:
	case env.StorageEnv.Type != "local":
		slog.Info("log watcher disabled: storage is not local", "storage_type", env.StorageEnv.Type)
	default:
		watcher := logwatch.New(filepath.Join(env.StorageEnv.Dir, env.LogsDir), bus)
		p.Go(panicerr.SafeContext(watcher.Run))
	}

	return p.Wait()
}

func newStorage(ctx context.Context, env *config.Env) (storage.Storage, error) {
	switch env.StorageEnv.Type {
	case "s3":
		s, err := storage.NewS3Storage(ctx, env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return s, nil
	case "local":
		s, err := storage.NewLocalStorage(env.StorageEnv.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", env.StorageEnv.Type)
	}
}

// serve runs the HTTP server until ctx is done, then gives active
// connections shutdownTimeout to finish.
func serve(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
