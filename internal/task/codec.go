package task

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/kazz187/orchestra/internal/tasklog"
)

// Timestamp reads RFC 3339 as well as the zone-less ISO form the agent
// writes (Python isoformat), and always writes RFC 3339.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, ok := tasklog.ParseTimestamp(s)
	if !ok {
		return fmt.Errorf("invalid timestamp %q", s)
	}
	*t = Timestamp(parsed)
	return nil
}

type taskAlias Task

// taskWire shadows the time fields of the embedded alias.
type taskWire struct {
	*taskAlias
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

var taskKeys = func() map[string]struct{} {
	keys := make(map[string]struct{})
	rt := reflect.TypeFor[Task]()
	for i := range rt.NumField() {
		name, _, _ := strings.Cut(rt.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}()

func (t Task) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(taskWire{
		taskAlias: (*taskAlias)(&t),
		CreatedAt: Timestamp(t.CreatedAt),
		UpdatedAt: Timestamp(t.UpdatedAt),
	})
	if err != nil || len(t.Extra) == 0 {
		return data, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	for k, v := range t.Extra {
		if _, known := members[k]; !known {
			members[k] = v
		}
	}
	return json.Marshal(members)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	w := taskWire{taskAlias: (*taskAlias)(t)}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.CreatedAt = time.Time(w.CreatedAt)
	t.UpdatedAt = time.Time(w.UpdatedAt)

	t.Extra = nil
	for k, v := range members {
		if _, known := taskKeys[k]; known {
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage)
		}
		t.Extra[k] = v
	}
	return nil
}
