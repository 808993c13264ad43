// Package script builds the privileged command sequences run for each service
// operation. A sequence is data (a Plan of Steps); RenderBatch turns it into a
// cmd.exe batch file and Transcript interprets it without a shell.
package script

import (
	"fmt"
	"strings"
)

// Operation is one of the four lifecycle operations.
type Operation int

const (
	Install Operation = iota
	Uninstall
	Start
	Stop
)

// Operations lists every operation in declaration order.
var Operations = []Operation{Install, Uninstall, Start, Stop}

// String returns the lower-case operation name.
func (o Operation) String() string {
	switch o {
	case Install:
		return "install"
	case Uninstall:
		return "uninstall"
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// ParseOperation maps a name back to an Operation.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations {
		if strings.EqualFold(strings.TrimSpace(name), op.String()) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown service operation %q", name)
}

// ScriptName is the batch file name written to the temp directory.
func (o Operation) ScriptName() string {
	return "zerobyte_" + o.String() + "_service.bat"
}

// LogName is the log file the script writes in the temp directory.
func (o Operation) LogName() string {
	return "zerobyte_service_" + o.String() + ".log"
}

// SuccessMarker is the last line the script writes when every checked step passed.
func (o Operation) SuccessMarker() string {
	switch o {
	case Install:
		return "Installation complete"
	case Uninstall:
		return "Uninstallation complete"
	case Start:
		return "Service started"
	case Stop:
		return "Service stopped"
	default:
		return ""
	}
}

// Header is the first line the script writes, truncating any previous log.
func (o Operation) Header() string {
	switch o {
	case Install:
		return "Installing service..."
	case Uninstall, Stop:
		return "Stopping service..."
	case Start:
		return "Starting service..."
	default:
		return ""
	}
}
