package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Mirai3103/remote-judge/internal/models"
)

// Result is what the wrapper reported for one run.
type Result struct {
	Status        models.RunStatus // RunSuccess or RunError
	Output        string
	ExecutionTime float64 // seconds
	Error         string
}

// Parse extracts the output, time and error segments from raw side channel
// text. Missing output or time segments are not errors; an error segment
// forces RunError. Parse never panics.
func Parse(raw string, m Markers) (res Result) {
	res.Status = models.RunSuccess

	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Status: models.RunError,
				Error:  fmt.Sprintf("Failed to parse execution result: %v", r),
			}
		}
	}()

	if out, ok := between(raw, m.OutputStart, m.OutputEnd); ok {
		res.Output = out
	}

	if t, ok := between(raw, m.TimeStart, m.TimeEnd); ok {
		if secs, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			res.ExecutionTime = secs
		}
	}

	if errText, ok := between(raw, m.ErrorStart, m.ErrorEnd); ok {
		res.Error = errText
		res.Status = models.RunError
	}

	return res
}

// between returns the text after the first start marker up to the first end
// marker that follows it.
func between(s, start, end string) (string, bool) {
	if start == "" || end == "" {
		return "", false
	}
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}
