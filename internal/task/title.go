package task

import (
	"strings"
	"unicode/utf8"
)

const (
	maxTitleRunes    = 30
	maxClauseRunes   = 20
	titleKeywords    = 3
	DefaultTitle     = "New task"
	truncationSuffix = "…"
)

// clauseSeparators end the first clause of a description.
const clauseSeparators = "。．.!?！？、,"

// IsValidTitle reports whether title can be used as is for a task with the
// given description.
func IsValidTitle(title, description string) bool {
	title = strings.TrimSpace(title)
	if title == "" || title == strings.TrimSpace(description) {
		return false
	}
	return utf8.RuneCountInString(title) <= maxTitleRunes
}

// GenerateTitle derives a short title from description. It is deterministic
// and never returns an empty string.
func GenerateTitle(description string) string {
	line := firstLine(description)
	clause := line
	if i := strings.IndexAny(line, clauseSeparators); i >= 0 {
		clause = strings.TrimSpace(line[:i])
	}
	if clause == "" {
		clause = line
	}
	if clause == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(clause) <= maxClauseRunes {
		return clause
	}

	var words []string
	for _, w := range strings.Fields(clause) {
		if utf8.RuneCountInString(w) > 1 {
			words = append(words, w)
		}
		if len(words) == titleKeywords {
			break
		}
	}
	title := strings.Join(words, " ")
	if title == "" {
		title = clause
	}
	return truncate(title, maxTitleRunes-utf8.RuneCountInString(truncationSuffix)) + truncationSuffix
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
