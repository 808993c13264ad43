//go:build windows

package progress

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableANSI turns on Virtual Terminal processing for the console behind f so
// the spinner can redraw its line in place. Redirected handles are left alone.
func enableANSI(f *os.File) {
	handle := windows.Handle(f.Fd())
	var mode uint32

	// Get current console mode
	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		// Enable Virtual Terminal Processing (0x0004)
		const ENABLE_VIRTUAL_TERMINAL_PROCESSING = 0x0004
		_ = windows.SetConsoleMode(handle, mode|ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	}
}
