package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name       string
		passed     int
		total      int
		hadError   bool
		hadTimeout bool
		want       Status
	}{
		{name: "all passed", passed: 3, total: 3, want: Accepted},
		{name: "some failed", passed: 2, total: 3, want: WrongAnswer},
		{name: "none passed", passed: 0, total: 1, want: WrongAnswer},
		{name: "no test cases is never accepted", passed: 0, total: 0, want: WrongAnswer},
		{name: "error", passed: 1, total: 3, hadError: true, want: RuntimeError},
		{name: "timeout", passed: 1, total: 3, hadTimeout: true, want: TimeLimitExceeded},
		{name: "error wins over timeout", hadError: true, hadTimeout: true, total: 1, want: RuntimeError},
		{name: "error with everything passed", passed: 2, total: 2, hadError: true, want: RuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveStatus(tt.passed, tt.total, tt.hadError, tt.hadTimeout)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestStatusValid(t *testing.T) {
	assert.False(t, Status("pending").Valid())
	assert.False(t, Status("").Valid())
	assert.True(t, TimeLimitExceeded.Valid())
}

func TestSubmissionValidate(t *testing.T) {
	tc := []TestCase{{InputData: "", ExpectedOutput: "x"}}

	assert.NoError(t, Submission{Language: "python", TestCases: tc}.Validate())
	assert.NoError(t, Submission{Language: "", TestCases: tc}.Validate())
	assert.NoError(t, Submission{Language: " Python ", TestCases: tc}.Validate())
	assert.ErrorIs(t, Submission{Language: "python"}.Validate(), ErrNoTestCases)
	assert.ErrorIs(t, Submission{Language: "cpp", TestCases: tc}.Validate(), ErrUnsupportedLanguage)
	assert.ErrorIs(t, Submission{TestCases: []TestCase{{InputData: "a\xffb"}}}.Validate(), ErrInvalidEncoding)
}

func TestEvaluationResultJSON(t *testing.T) {
	res := EvaluationResult{
		Status:         WrongAnswer,
		ExecutionTime:  0.25,
		TotalTestCases: 1,
		Outputs:        []TestOutput{{Input: "1", Expected: "2", Actual: "3"}},
	}

	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "wrong_answer", decoded["status"])
	assert.Nil(t, decoded["error_message"])
	assert.EqualValues(t, 0, decoded["memory_used"])
	assert.Contains(t, decoded, "test_cases_passed")
	outputs := decoded["outputs"].([]any)
	require.Len(t, outputs, 1)
	assert.Equal(t, false, outputs[0].(map[string]any)["passed"])

	res.SetError("boom")
	raw, err = json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"error_message":"boom"`)
}
