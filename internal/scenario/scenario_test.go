package scenario

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mirai3103/remote-judge/internal/models"
)

type mapEvaluator map[string]models.EvaluationResult

func (m mapEvaluator) Evaluate(_ context.Context, sub models.Submission) models.EvaluationResult {
	return m[sub.Code]
}

func TestParseExamples(t *testing.T) {
	cases, err := Parse(filepath.Join("testdata", "examples.toml"))
	require.NoError(t, err)
	require.Len(t, cases, 5)

	first := cases[0]
	assert.Equal(t, "prints hello world", first.Name)
	assert.Equal(t, `print("Hello World")`, first.Submission.Code)
	assert.Equal(t, models.LanguagePython, first.Submission.Language)
	assert.NotEmpty(t, first.Submission.ID)
	require.Len(t, first.Submission.TestCases, 1)
	assert.Equal(t, "Hello World", first.Submission.TestCases[0].ExpectedOutput)
	require.NotNil(t, first.Expect.Passed)
	assert.Equal(t, 1, *first.Expect.Passed)
	require.NoError(t, first.Submission.Validate())

	loop := cases[3]
	assert.Equal(t, 2.0, loop.Submission.TimeLimitSec)
	assert.Nil(t, loop.Expect.Passed)
	assert.Equal(t, "while True:\n    pass\n", loop.Submission.Code)

	assert.NotEqual(t, cases[0].Submission.ID, cases[1].Submission.ID)
}

func TestParseBytesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "bad toml", data: "[[scenarios]\n", want: "failed to parse TOML"},
		{name: "no tests", data: "[[scenarios]]\ndescription = \"x\"\n[scenarios.expect]\nstatus = \"accepted\"\n", want: "x: at least one test is required"},
		{name: "bad status", data: "[[scenarios]]\n[[scenarios.tests]]\nans = \"1\"\n[scenarios.expect]\nstatus = \"ok\"\n", want: "scenario #1: invalid expected status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.data))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRunAndRender(t *testing.T) {
	two := 2
	cases := []Case{
		{Name: "good", Submission: models.Submission{Code: "a"}, Expect: SpecExpect{Status: "accepted", Passed: &two}},
		{Name: "bad", Submission: models.Submission{Code: "b"}, Expect: SpecExpect{Status: "accepted"}},
	}
	eval := mapEvaluator{
		"a": {Status: models.Accepted, TestCasesPassed: 2, TotalTestCases: 2},
		"b": {Status: models.WrongAnswer, TestCasesPassed: 1, TotalTestCases: 2},
	}

	outcomes := Run(context.Background(), eval, cases)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK())
	assert.Equal(t, "status wrong_answer, want accepted", outcomes[1].Mismatch)

	var buf bytes.Buffer
	failed := Render(&buf, outcomes)
	assert.Equal(t, 1, failed)
	assert.Contains(t, buf.String(), "good")
	assert.Contains(t, buf.String(), "FAIL: status wrong_answer, want accepted")
	assert.Contains(t, buf.String(), "1/2")
}

func TestCompareChecksPassedCount(t *testing.T) {
	one := 1
	got := compare(SpecExpect{Status: "wrong_answer", Passed: &one}, models.EvaluationResult{Status: models.WrongAnswer, TestCasesPassed: 0})
	assert.Equal(t, "passed 0, want 1", got)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := Run(ctx, mapEvaluator{}, []Case{{Name: "x"}})
	assert.Empty(t, outcomes)
}
