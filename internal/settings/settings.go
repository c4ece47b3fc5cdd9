// Package settings holds the dashboard preferences shared by every client.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Millis is a duration carried as milliseconds in JSON, which is what the
// dashboard UI passes to its timers, and as a Go duration string in YAML.
type Millis time.Duration

func (m Millis) Duration() time.Duration {
	return time.Duration(m)
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Duration(m).Milliseconds(), 10)), nil
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*m = Millis(d)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("invalid milliseconds %s: %w", data, err)
	}
	*m = Millis(time.Duration(ms) * time.Millisecond)
	return nil
}

func (m Millis) MarshalYAML() (any, error) {
	return time.Duration(m).String(), nil
}

func (m *Millis) UnmarshalYAML(value *yaml.Node) error {
	d, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q at line %d: %w", value.Value, value.Line, err)
	}
	*m = Millis(d)
	return nil
}

type Polling struct {
	ChatInterval Millis `json:"chatInterval" yaml:"chat_interval"`
	TaskInterval Millis `json:"taskInterval" yaml:"task_interval"`
	LogInterval  Millis `json:"logInterval" yaml:"log_interval"`
}

type Timeout struct {
	APIRequest      Millis `json:"apiRequest" yaml:"api_request"`
	MessageResponse Millis `json:"messageResponse" yaml:"message_response"`
}

type Display struct {
	ItemsPerPage    int `json:"itemsPerPage" yaml:"items_per_page"`
	MaxChatMessages int `json:"maxChatMessages" yaml:"max_chat_messages"`
	MaxLogLines     int `json:"maxLogLines" yaml:"max_log_lines"`
}

// Merge tunes how polling clients fold repeated transcripts together.
type Merge struct {
	DedupWindow Millis `json:"dedupWindow" yaml:"dedup_window"`
}

type Settings struct {
	Polling Polling `json:"polling" yaml:"polling"`
	Timeout Timeout `json:"timeout" yaml:"timeout"`
	Display Display `json:"display" yaml:"display"`
	Merge   Merge   `json:"merge" yaml:"merge"`
}

func Default() Settings {
	return Settings{
		Polling: Polling{
			ChatInterval: Millis(time.Second),
			TaskInterval: Millis(2 * time.Second),
			LogInterval:  Millis(3 * time.Second),
		},
		Timeout: Timeout{
			APIRequest:      Millis(30 * time.Second),
			MessageResponse: Millis(60 * time.Second),
		},
		Display: Display{
			ItemsPerPage:    20,
			MaxChatMessages: 100,
			MaxLogLines:     500,
		},
		Merge: Merge{
			DedupWindow: Millis(5 * time.Second),
		},
	}
}

// Validate returns one message per field that is not positive.
func (s Settings) Validate() []string {
	var msgs []string
	positive := func(name string, ok bool) {
		if !ok {
			msgs = append(msgs, name+" must be positive")
		}
	}
	positive("polling.chatInterval", s.Polling.ChatInterval > 0)
	positive("polling.taskInterval", s.Polling.TaskInterval > 0)
	positive("polling.logInterval", s.Polling.LogInterval > 0)
	positive("timeout.apiRequest", s.Timeout.APIRequest > 0)
	positive("timeout.messageResponse", s.Timeout.MessageResponse > 0)
	positive("display.itemsPerPage", s.Display.ItemsPerPage > 0)
	positive("display.maxChatMessages", s.Display.MaxChatMessages > 0)
	positive("display.maxLogLines", s.Display.MaxLogLines > 0)
	positive("merge.dedupWindow", s.Merge.DedupWindow > 0)
	return msgs
}
