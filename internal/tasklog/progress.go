package tasklog

import "strings"

const (
	StatusCompleted = "completed"
	StatusRejected  = "rejected"

	StepWaiting = "waiting"
)

type progressStep struct {
	keyword string
	percent int
}

// progressSteps is checked in order; the step label is the keyword itself.
var progressSteps = []progressStep{
	{"received", 10},
	{"analyzing", 25},
	{"planning", 40},
	{"implementing", 60},
	{"testing", 80},
	{"reviewing", 90},
}

// ComputeProgress estimates how far a task has come. Terminal statuses are
// fixed; otherwise the most recent line mentioning a known step wins.
func ComputeProgress(logs []LogLine, status string) (int, string) {
	switch status {
	case StatusCompleted:
		return 100, StatusCompleted
	case StatusRejected:
		return 0, StatusRejected
	}
	for i := len(logs) - 1; i >= 0; i-- {
		msg := strings.ToLower(logs[i].Message)
		for _, step := range progressSteps {
			if strings.Contains(msg, step.keyword) {
				return step.percent, step.keyword
			}
		}
	}
	return 0, StepWaiting
}
