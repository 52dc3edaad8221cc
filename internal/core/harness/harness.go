// Package harness builds the Python wrapper that runs a submission for one
// test case and parses what the wrapper reports back over its side channel.
package harness

import (
	"strconv"
	"strings"
)

// SideChannelFD is the descriptor the wrapper writes to in fd mode. The
// executor passes the write end of a pipe as the first ExtraFiles entry.
const SideChannelFD = 3

// IndentPrefix is prepended to every line of submitted code.
const IndentPrefix = "    "

// Generator produces wrapper programs.
type Generator struct {
	// UseStderr writes the side channel to the process stderr instead of
	// descriptor 3.
	UseStderr bool
}

// Generate returns the wrapper for code run against input. The wrapper feeds
// input to sys.stdin, captures sys.stdout, times the code and reports the
// captured output, the elapsed seconds or the error through the side channel.
func (g Generator) Generate(code, input string, m Markers) string {
	var b strings.Builder

	b.WriteString("import io as _judge_io\n")
	b.WriteString("import os as _judge_os\n")
	b.WriteString("import sys\n")
	b.WriteString("import time as _judge_time\n")
	b.WriteString("import traceback as _judge_traceback\n\n")

	if g.UseStderr {
		b.WriteString("_judge_side = sys.stderr\n")
	} else {
		b.WriteString("_judge_side = _judge_os.fdopen(" + strconv.Itoa(SideChannelFD) + ", \"w\", encoding=\"utf-8\", errors=\"replace\")\n")
	}
	b.WriteString("sys.stdin = _judge_io.StringIO(" + pyQuote(input) + ")\n")
	b.WriteString("_judge_out = _judge_io.StringIO()\n")
	b.WriteString("sys.stdout = _judge_out\n\n")

	b.WriteString("def _judge_report_output():\n")
	b.WriteString("    _judge_side.write(" + pyQuote(m.OutputStart) + " + _judge_out.getvalue() + " + pyQuote(m.OutputEnd) + " + \"\\n\")\n\n")
	b.WriteString("def _judge_report_error(message):\n")
	b.WriteString("    _judge_side.write(" + pyQuote(m.ErrorStart) + " + message + \"\\n\" + _judge_traceback.format_exc() + " + pyQuote(m.ErrorEnd) + " + \"\\n\")\n\n")
	b.WriteString("def _judge_report_time():\n")
	b.WriteString("    _judge_side.write(" + pyQuote(m.TimeStart) + " + repr(_judge_time.perf_counter() - _judge_start) + " + pyQuote(m.TimeEnd) + " + \"\\n\")\n\n")

	b.WriteString("_judge_start = _judge_time.perf_counter()\n")
	b.WriteString("try:\n")
	b.WriteString(IndentCode(code))
	b.WriteString("\n")
	b.WriteString(IndentPrefix + "pass\n")
	b.WriteString("except SystemExit as _judge_exit:\n")
	b.WriteString("    if _judge_exit.code is None or _judge_exit.code == 0:\n")
	b.WriteString("        _judge_report_output()\n")
	b.WriteString("    else:\n")
	b.WriteString("        _judge_report_error(\"SystemExit: \" + str(_judge_exit.code))\n")
	b.WriteString("    _judge_report_time()\n")
	b.WriteString("except Exception as _judge_exc:\n")
	b.WriteString("    _judge_report_error(str(_judge_exc))\n")
	b.WriteString("    _judge_report_time()\n")
	b.WriteString("else:\n")
	b.WriteString("    _judge_report_output()\n")
	b.WriteString("    _judge_report_time()\n")
	b.WriteString("finally:\n")
	b.WriteString("    _judge_side.flush()\n")

	return b.String()
}

// IndentCode prefixes every line of code with IndentPrefix.
func IndentCode(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = IndentPrefix + line
	}
	return strings.Join(lines, "\n")
}

// pyQuote renders s as a Python string literal. Go's quoting only emits
// escapes Python understands (\n, \t, \xHH, \uHHHH, \UHHHHHHHH, ...).
func pyQuote(s string) string {
	return strconv.Quote(s)
}
