// Package color assigns stable terminal colors to agents and task states.
package color

import (
	"hash/fnv"

	"github.com/fatih/color"
)

var agentPalette = []color.Attribute{
	color.FgHiRed,
	color.FgHiGreen,
	color.FgHiYellow,
	color.FgHiBlue,
	color.FgHiMagenta,
	color.FgHiCyan,
	color.FgRed,
	color.FgGreen,
	color.FgYellow,
	color.FgBlue,
	color.FgMagenta,
	color.FgCyan,
}

// Agent returns the same color for the same agent name on every run.
func Agent(agent string) *color.Color {
	h := fnv.New32a()
	h.Write([]byte(agent))
	return color.New(agentPalette[h.Sum32()%uint32(len(agentPalette))])
}

func AgentPrefix(agent string) string {
	return Agent(agent).Sprintf("[%s]", agent)
}

func Status(status string) *color.Color {
	switch status {
	case "completed":
		return color.New(color.FgGreen, color.Bold)
	case "rejected":
		return color.New(color.FgRed, color.Bold)
	case "in_progress":
		return color.New(color.FgYellow)
	case "in_review":
		return color.New(color.FgCyan)
	default:
		return color.New(color.Faint)
	}
}

// Disabled reports whether output is left uncolored (NO_COLOR or not a
// terminal).
func Disabled() bool {
	return color.NoColor
}
