package transcript

import (
	"strings"

	"github.com/kazz187/orchestra/internal/tasklog"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

const (
	agentUser = "user"
	agentAI   = "ai"

	userPrefix = "User: "
	aiPrefix   = "AI: "
)

type ChatMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	AgentType string `json:"agentType,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ToChatMessage renders a log line as a chat bubble. Conversation lines
// written by the agent carry a "User: " or "AI: " prefix; every other line
// is shown as a system message from its agent.
func ToChatMessage(l tasklog.LogLine) ChatMessage {
	msg := ChatMessage{
		ID:        "msg-" + l.ID,
		Role:      RoleSystem,
		AgentType: l.Agent,
		Content:   l.Message,
		Timestamp: l.Timestamp,
	}
	switch {
	case l.Agent == agentUser && strings.HasPrefix(l.Message, userPrefix):
		msg.Role = RoleUser
		msg.AgentType = ""
		msg.Content = strings.TrimPrefix(l.Message, userPrefix)
	case l.Agent == agentAI && strings.HasPrefix(l.Message, aiPrefix):
		msg.Role = RoleAssistant
		msg.AgentType = "actor"
		msg.Content = strings.TrimPrefix(l.Message, aiPrefix)
	}
	return msg
}

func ToChatMessages(lines []tasklog.LogLine) []ChatMessage {
	out := make([]ChatMessage, 0, len(lines))
	for _, l := range lines {
		out = append(out, ToChatMessage(l))
	}
	return out
}
