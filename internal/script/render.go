package script

import (
	"fmt"
	"math"
	"strings"

	"github.com/JBibu/backupone/internal/constants"
)

const crlf = "\r\n"

// headerStamp is expanded by cmd.exe when the header is written.
const headerStamp = "[%date% %time%]"

// RenderBatch renders plan as a cmd.exe batch file.
//
// Every line of output goes to plan.LogPath. The timestamped header truncates
// the log, all later lines append. Checked steps exit the script with the failing command's
// exit code after writing the error marker.
func RenderBatch(plan Plan) string {
	logRedirect := `"` + strings.ReplaceAll(plan.LogPath, "%", "%%") + `"`

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString(crlf)
	}

	line("@echo off")
	line("echo %s %s > %s", headerStamp, echoText(plan.Header), logRedirect)

	for _, step := range plan.Steps {
		if step.Announce != "" {
			line("echo %s >> %s", echoText(step.Announce), logRedirect)
		}
		if len(step.Command) > 0 {
			line("%s >> %s 2>&1", commandLine(step.Command), logRedirect)
			if step.Checked() {
				line("if %%errorlevel%% neq 0 (")
				line("    echo %s %s >> %s", constants.ErrorMarker, echoText(step.OnError), logRedirect)
				line("    exit /b %%errorlevel%%")
				line(")")
			}
		}
		if step.Pause > 0 {
			line("timeout /t %d /nobreak >nul", pauseSeconds(step))
		}
	}

	line("echo %s >> %s", echoText(plan.SuccessMarker), logRedirect)
	return b.String()
}

func pauseSeconds(step Step) int {
	return int(math.Ceil(step.Pause.Seconds()))
}

func commandLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteArg(a)
	}
	return strings.Join(quoted, " ")
}

// quoteArg quotes an argument for cmd.exe when it contains whitespace or
// metacharacters. Percent signs are always doubled so they survive expansion.
func quoteArg(arg string) string {
	arg = strings.ReplaceAll(arg, "%", "%%")
	if arg == "" {
		return `""`
	}
	if strings.ContainsAny(arg, " \t&|<>^()\"") {
		return `"` + strings.ReplaceAll(arg, `"`, `""`) + `"`
	}
	return arg
}

// echoText escapes text for an unquoted echo inside or outside a block.
func echoText(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '%':
			b.WriteString("%%")
		case '^', '&', '|', '<', '>', '(', ')':
			b.WriteRune('^')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
