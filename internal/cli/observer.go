package cli

import (
	"fmt"

	"github.com/JBibu/backupone/internal/progress"
	"github.com/JBibu/backupone/internal/script"
	"github.com/JBibu/backupone/internal/service"
)

// progressObserver forwards orchestrator transitions to a progress reporter.
func progressObserver(r progress.Reporter) service.Observer {
	return func(ev service.Event) {
		if desc := describeEvent(ev); desc != "" {
			r.SetDescription(desc)
		}
	}
}

func startDescription(op script.Operation) string {
	return fmt.Sprintf("Checking service before %s", op)
}

// describeEvent returns the progress line for a transition, or "" when the
// transition has nothing to show.
func describeEvent(ev service.Event) string {
	switch ev.State {
	case service.StateScriptWritten:
		return fmt.Sprintf("Prepared %s script", ev.Op)
	case service.StateElevating:
		return "Waiting for administrator approval"
	case service.StatePolling:
		if ev.Attempt == 0 {
			return fmt.Sprintf("Waiting for %s to finish", ev.Op)
		}
		return fmt.Sprintf("Waiting for %s to finish (%d/%d)", ev.Op, ev.Attempt, ev.MaxAttempts)
	case service.StateVerifying:
		return "Verifying service state"
	}
	return ""
}
