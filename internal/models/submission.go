package models

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// LanguagePython is the only language the runner executes.
const LanguagePython = "python"

var (
	ErrNoTestCases         = errors.New("submission has no test cases")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInvalidEncoding     = errors.New("test case input is not valid UTF-8")
)

type Submission struct {
	ID        string     `json:"id"`
	ProblemID string     `json:"problemId"`
	Language  string     `json:"language"`
	Code      string     `json:"code"`
	TestCases []TestCase `json:"testCases"`
	// TimeLimitSec overrides the configured budget when positive.
	TimeLimitSec float64 `json:"timeLimitSec,omitempty"`
}

// Validate rejects submissions the runner must not evaluate. An empty
// language is treated as python.
func (s Submission) Validate() error {
	if lang := strings.ToLower(strings.TrimSpace(s.Language)); lang != "" && lang != LanguagePython {
		return ErrUnsupportedLanguage
	}
	if len(s.TestCases) == 0 {
		return ErrNoTestCases
	}
	for _, tc := range s.TestCases {
		if !utf8.ValidString(tc.InputData) {
			return ErrInvalidEncoding
		}
	}
	return nil
}

type TestCase struct {
	ID             string `json:"id"`
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
	IsExample      bool   `json:"is_example"`
}

// TestOutput is the outcome of one executed test case.
type TestOutput struct {
	TestCaseID string `json:"testCaseId,omitempty"`
	Input      string `json:"input"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
	Passed     bool   `json:"passed"`
	Hidden     bool   `json:"hidden,omitempty"`
}

// EvaluationResult is the aggregate verdict for one submission.
type EvaluationResult struct {
	Status          Status       `json:"status"`
	ExecutionTime   float64      `json:"execution_time"`
	MemoryUsed      int          `json:"memory_used"`
	TestCasesPassed int          `json:"test_cases_passed"`
	TotalTestCases  int          `json:"total_test_cases"`
	ErrorMessage    *string      `json:"error_message"`
	Outputs         []TestOutput `json:"outputs"`
}

// SetError records msg as the error message.
func (r *EvaluationResult) SetError(msg string) {
	r.ErrorMessage = &msg
}

type SubmissionResult struct {
	SubmissionID string           `json:"submissionId"`
	ProblemID    string           `json:"problemId,omitempty"`
	Result       EvaluationResult `json:"result"`
}
