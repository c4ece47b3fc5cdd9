package transcript

import (
	"sort"
	"sync"
	"time"

	"github.com/kazz187/orchestra/internal/tasklog"
)

const DefaultDedupWindow = 5 * time.Second

type lineKey struct {
	source string
	line   int
}

// Merger keeps an append-only transcript across polls that each return the
// full log history. A fetched line is rendered at most once.
type Merger struct {
	mu     sync.Mutex
	window time.Duration
	lastID string
	seen   map[lineKey]struct{}
	lines  []tasklog.LogLine
}

func NewMerger(window time.Duration) *Merger {
	if window < 0 {
		window = 0
	}
	return &Merger{
		window: window,
		seen:   make(map[lineKey]struct{}),
	}
}

// Merge folds one poll into the transcript and returns the lines it
// appended, in timestamp order.
func (m *Merger) Merge(fetched []tasklog.LogLine) []tasklog.LogLine {
	m.mu.Lock()
	defer m.mu.Unlock()

	watermark := m.lastID
	var added []tasklog.LogLine
	for _, l := range fetched {
		if l.ID > m.lastID {
			m.lastID = l.ID
		}
		if watermark != "" && l.ID <= watermark {
			continue
		}
		if l.Source != "" {
			k := lineKey{source: l.Source, line: l.Line}
			if _, ok := m.seen[k]; ok {
				continue
			}
			m.seen[k] = struct{}{}
		}
		if m.isEcho(l) {
			continue
		}
		m.insert(l)
		added = append(added, l)
	}
	sortByTime(added)
	return added
}

// isEcho reports whether the same text was already rendered with a
// timestamp inside the dedup window.
func (m *Merger) isEcho(l tasklog.LogLine) bool {
	t, ok := tasklog.ParseTimestamp(l.Timestamp)
	for _, r := range m.lines {
		if r.Message != l.Message {
			continue
		}
		rt, rok := tasklog.ParseTimestamp(r.Timestamp)
		if !ok || !rok {
			if r.Timestamp == l.Timestamp {
				return true
			}
			continue
		}
		d := t.Sub(rt)
		if d < 0 {
			d = -d
		}
		if d <= m.window {
			return true
		}
	}
	return false
}

// insert places l after every rendered line that is not later than it.
func (m *Merger) insert(l tasklog.LogLine) {
	t, ok := tasklog.ParseTimestamp(l.Timestamp)
	if !ok {
		m.lines = append(m.lines, l)
		return
	}
	i := len(m.lines)
	for j, r := range m.lines {
		if rt, rok := tasklog.ParseTimestamp(r.Timestamp); rok && rt.After(t) {
			i = j
			break
		}
	}
	m.lines = append(m.lines, tasklog.LogLine{})
	copy(m.lines[i+1:], m.lines[i:])
	m.lines[i] = l
}

func (m *Merger) Lines() []tasklog.LogLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tasklog.LogLine, len(m.lines))
	copy(out, m.lines)
	return out
}

// LastID is the highest line id observed so far.
func (m *Merger) LastID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastID
}

func sortByTime(lines []tasklog.LogLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		ti, iok := tasklog.ParseTimestamp(lines[i].Timestamp)
		tj, jok := tasklog.ParseTimestamp(lines[j].Timestamp)
		if !iok || !jok {
			return iok && !jok
		}
		return ti.Before(tj)
	})
}
