//go:build windows

package proc

// signalName resolves a signal number to its name. Windows has no named
// termination signals, so this always returns "".
func signalName(sig int) string {
	return ""
}
