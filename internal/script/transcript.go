package script

import (
	"strings"

	"github.com/JBibu/backupone/internal/constants"
)

// StepResult is the simulated outcome of one step's command.
type StepResult struct {
	Output   string
	ExitCode int
}

// RunFunc decides the result of the command of step i.
type RunFunc func(i int, step Step) StepResult

// Transcript returns the log the rendered script would leave behind when each
// command behaves as run reports. A nil run treats every command as successful
// with no output. The header keeps the unexpanded timestamp variables.
func Transcript(plan Plan, run RunFunc) string {
	var lines []string
	lines = append(lines, headerStamp+" "+plan.Header)

	for i, step := range plan.Steps {
		if step.Announce != "" {
			lines = append(lines, step.Announce)
		}
		if len(step.Command) > 0 {
			var res StepResult
			if run != nil {
				res = run(i, step)
			}
			if out := strings.TrimRight(res.Output, "\r\n"); out != "" {
				lines = append(lines, out)
			}
			if res.ExitCode != 0 && step.Checked() {
				lines = append(lines, constants.ErrorMarker+" "+step.OnError)
				return strings.Join(lines, "\n") + "\n"
			}
		}
	}

	lines = append(lines, plan.SuccessMarker)
	return strings.Join(lines, "\n") + "\n"
}

// FailAt returns a RunFunc failing the first command whose verb and subcommand
// match, for example FailAt("sc", "delete", 1072).
func FailAt(verb, sub string, code int) RunFunc {
	return func(_ int, step Step) StepResult {
		if len(step.Command) >= 2 && step.Command[0] == verb && step.Command[1] == sub {
			return StepResult{ExitCode: code}
		}
		return StepResult{}
	}
}
