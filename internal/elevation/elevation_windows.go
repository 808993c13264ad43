//go:build windows

package elevation

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	shell32         = windows.NewLazySystemDLL("shell32.dll")
	shellExecuteExW = shell32.NewProc("ShellExecuteExW")
)

const (
	swHide       = 0
	swShowNormal = 1

	// seeMaskNoAsync waits for the launch itself (not the child) before returning.
	seeMaskNoAsync = 0x00000100
)

// SHELLEXECUTEINFO structure for ShellExecuteExW
// https://docs.microsoft.com/en-us/windows/win32/api/shellapi/ns-shellapi-shellexecuteinfow
type shellExecuteInfo struct {
	cbSize         uint32
	fMask          uint32
	hwnd           uintptr
	lpVerb         *uint16
	lpFile         *uint16
	lpParameters   *uint16
	lpDirectory    *uint16
	nShow          int32
	hInstApp       uintptr
	lpIDList       uintptr
	lpClass        *uint16
	hkeyClass      uintptr
	dwHotKey       uint32
	hIconOrMonitor uintptr
	hProcess       uintptr
}

// ShellLauncher raises the UAC consent prompt through ShellExecuteExW with the
// "runas" verb. No process handle is requested.
type ShellLauncher struct{}

// Launch implements Launcher.
func (ShellLauncher) Launch(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	verbPtr, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return fmt.Errorf("failed to convert verb: %w", err)
	}
	filePtr, err := windows.UTF16PtrFromString(req.Executable)
	if err != nil {
		return fmt.Errorf("failed to convert executable path: %w", err)
	}
	paramsPtr, err := windows.UTF16PtrFromString(req.Parameters())
	if err != nil {
		return fmt.Errorf("failed to convert parameters: %w", err)
	}
	var dirPtr *uint16
	if req.WorkingDir != "" {
		dirPtr, err = windows.UTF16PtrFromString(req.WorkingDir)
		if err != nil {
			return fmt.Errorf("failed to convert directory: %w", err)
		}
	}

	show := int32(swShowNormal)
	if req.Hidden {
		show = swHide
	}

	sei := shellExecuteInfo{
		cbSize:       uint32(unsafe.Sizeof(shellExecuteInfo{})),
		fMask:        seeMaskNoAsync,
		lpVerb:       verbPtr,
		lpFile:       filePtr,
		lpParameters: paramsPtr,
		lpDirectory:  dirPtr,
		nShow:        show,
	}

	ret, _, callErr := shellExecuteExW.Call(uintptr(unsafe.Pointer(&sei)))
	if ret != 0 {
		return nil
	}
	if errno, ok := callErr.(syscall.Errno); ok {
		if errno == windows.ERROR_CANCELLED {
			return ErrDeclined
		}
		if errno != 0 {
			return &LaunchError{Executable: req.Executable, Err: errno}
		}
	}
	return &LaunchError{Executable: req.Executable, Err: fmt.Errorf("ShellExecuteExW failed with unknown error")}
}

// DirectLauncher starts the request as a detached hidden child of an already
// elevated process. No consent prompt is shown.
type DirectLauncher struct{}

// Launch implements Launcher.
func (DirectLauncher) Launch(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(req.Executable)
	cmd.Dir = req.WorkingDir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    req.Hidden,
		CmdLine:       req.CommandLine(),
		CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
	}
	if err := cmd.Start(); err != nil {
		return &LaunchError{Executable: req.Executable, Err: err}
	}
	return cmd.Process.Release()
}

// IsElevated reports whether the current process token is elevated.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// Select returns DirectLauncher when already elevated, otherwise ShellLauncher.
func Select() Launcher {
	if IsElevated() {
		return DirectLauncher{}
	}
	return ShellLauncher{}
}
