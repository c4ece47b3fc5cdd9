// Package logwatch tails the per-task log files the external agent appends
// to and publishes every new line on the event bus.
package logwatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kazz187/orchestra/internal/eventbus"
	"github.com/kazz187/orchestra/internal/tasklog"
)

// tail is the read position in one log file. line counts the complete lines
// before offset, so published line numbers match what the engine assigns
// when it reads the whole file.
type tail struct {
	offset  int64
	line    int
	partial []byte
}

type Watcher struct {
	dir      string
	eventBus *eventbus.Bus
	now      func() time.Time
	tails    map[string]*tail
}

func New(dir string, eventBus *eventbus.Bus) *Watcher {
	return &Watcher{
		dir:      dir,
		eventBus: eventBus,
		now:      time.Now,
		tails:    make(map[string]*tail),
	}
}

// Run watches the directory until ctx is done. Lines already present when
// it starts are not published.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := w.start()
	if err != nil {
		return err
	}
	return w.loop(ctx, fw)
}

func (w *Watcher) start() (*fsnotify.Watcher, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", w.dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to list log directory %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := tasklog.TaskIDFromLogFile(e.Name()); !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(w.dir, e.Name()))
		if err != nil {
			continue
		}
		// Resume after the last complete line; a trailing partial line is
		// read again once it is finished.
		end := bytes.LastIndexByte(data, '\n') + 1
		w.tails[e.Name()] = &tail{
			offset: int64(end),
			line:   bytes.Count(data[:end], []byte{'\n'}),
		}
	}
	return fw, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) error {
	defer fw.Close()
	slog.InfoContext(ctx, "watching task logs", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			taskID, ok := tasklog.TaskIDFromLogFile(name)
			if !ok {
				continue
			}
			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(w.tails, name)
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := w.readNew(name, taskID); err != nil {
					slog.WarnContext(ctx, "failed to tail task log", "file", name, "error", err)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) readNew(name, taskID string) error {
	f, err := os.Open(filepath.Join(w.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			delete(w.tails, name)
			return nil
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	t := w.tails[name]
	if t == nil || info.Size() < t.offset {
		t = &tail{}
		w.tails[name] = t
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	t.offset += int64(len(data))

	data = append(t.partial, data...)
	end := bytes.LastIndexByte(data, '\n') + 1
	t.partial = append([]byte(nil), data[end:]...)

	if end == 0 {
		return nil
	}
	agent := strings.TrimSuffix(name, filepath.Ext(name))
	readTime := w.now()
	for _, raw := range strings.Split(string(data[:end-1]), "\n") {
		t.line++
		l, ok := tasklog.ParseLine(raw, agent, readTime)
		if !ok {
			continue
		}
		l.TaskID = taskID
		l.Source = name
		l.Line = t.line
		w.eventBus.PublishNew(eventbus.EventTypeLog, taskID, l, map[string]string{"source": name})
	}
	return nil
}
