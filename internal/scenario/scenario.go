// Package scenario reads judge scenarios from TOML and checks the verdicts
// the runner produces against the expected ones.
package scenario

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/Mirai3103/remote-judge/internal/models"
)

type SpecTest struct {
	In  string `toml:"in"`
	Ans string `toml:"ans"`
}

type SpecExpect struct {
	Status string `toml:"status"`
	// Passed is compared only when set.
	Passed *int `toml:"passed"`
}

type specScenario struct {
	Description  string     `toml:"description"`
	Code         string     `toml:"code"`
	TimeLimitSec float64    `toml:"time_limit_sec"`
	Tests        []SpecTest `toml:"tests"`
	Expect       SpecExpect `toml:"expect"`
}

type specRoot struct {
	Scenarios []specScenario `toml:"scenarios"`
}

// Case is a runnable scenario.
type Case struct {
	Name       string
	Submission models.Submission
	Expect     SpecExpect
}

// Parse reads a scenario file.
func Parse(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseBytes(data)
}

func ParseBytes(data []byte) ([]Case, error) {
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cases := make([]Case, 0, len(root.Scenarios))
	for i, s := range root.Scenarios {
		name := s.Description
		if name == "" {
			name = fmt.Sprintf("scenario #%d", i+1)
		}
		if len(s.Tests) == 0 {
			return nil, fmt.Errorf("%s: at least one test is required", name)
		}
		if s.Expect.Status == "" || !models.Status(s.Expect.Status).Valid() {
			return nil, fmt.Errorf("%s: invalid expected status %q", name, s.Expect.Status)
		}

		tests := make([]models.TestCase, len(s.Tests))
		for j, tc := range s.Tests {
			tests[j] = models.TestCase{ID: fmt.Sprintf("%d", j+1), InputData: tc.In, ExpectedOutput: tc.Ans}
		}
		cases = append(cases, Case{
			Name: name,
			Submission: models.Submission{
				ID:           uuid.NewString(),
				Language:     models.LanguagePython,
				Code:         s.Code,
				TestCases:    tests,
				TimeLimitSec: s.TimeLimitSec,
			},
			Expect: s.Expect,
		})
	}
	return cases, nil
}

// Evaluator produces a verdict for a submission.
type Evaluator interface {
	Evaluate(ctx context.Context, submission models.Submission) models.EvaluationResult
}

// Outcome is one checked scenario.
type Outcome struct {
	Case     Case
	Result   models.EvaluationResult
	Mismatch string // empty when the verdict matched
}

func (o Outcome) OK() bool { return o.Mismatch == "" }

// Run evaluates every case in order.
func Run(ctx context.Context, eval Evaluator, cases []Case) []Outcome {
	outcomes := make([]Outcome, 0, len(cases))
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		res := eval.Evaluate(ctx, c.Submission)
		outcomes = append(outcomes, Outcome{Case: c, Result: res, Mismatch: compare(c.Expect, res)})
	}
	return outcomes
}

func compare(want SpecExpect, got models.EvaluationResult) string {
	var diffs []string
	if string(got.Status) != want.Status {
		diffs = append(diffs, fmt.Sprintf("status %s, want %s", got.Status, want.Status))
	}
	if want.Passed != nil && got.TestCasesPassed != *want.Passed {
		diffs = append(diffs, fmt.Sprintf("passed %d, want %d", got.TestCasesPassed, *want.Passed))
	}
	return strings.Join(diffs, "; ")
}
