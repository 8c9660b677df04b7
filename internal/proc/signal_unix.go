//go:build unix

package proc

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// signalName resolves a signal number to its name, e.g. 9 -> "SIGKILL".
// Returns "" for signals the platform does not name.
func signalName(sig int) string {
	return unix.SignalName(syscall.Signal(sig))
}
