package scenario

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Render writes outcomes as a table and returns the number of mismatches.
func Render(w io.Writer, outcomes []Outcome) int {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Judge scenarios")
	t.AppendHeader(table.Row{"#", "Scenario", "Status", "Passed", "Time (s)", "Result"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Scenario", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Time (s)", Align: text.AlignRight},
		{Name: "Result", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	failed := 0
	for i, o := range outcomes {
		verdict := "OK"
		if !o.OK() {
			failed++
			verdict = "FAIL: " + o.Mismatch
		}
		t.AppendRow(table.Row{
			i + 1,
			o.Case.Name,
			o.Result.Status,
			fmt.Sprintf("%d/%d", o.Result.TestCasesPassed, o.Result.TotalTestCases),
			fmt.Sprintf("%.3f", o.Result.ExecutionTime),
			verdict,
		})
	}

	overall := "PASS"
	if failed > 0 {
		overall = "FAIL"
	}
	t.AppendFooter(table.Row{"", "TOTAL", "", fmt.Sprintf("%d/%d", len(outcomes)-failed, len(outcomes)), "", overall})
	t.SetStyle(table.StyleLight)
	t.Render()
	return failed
}
