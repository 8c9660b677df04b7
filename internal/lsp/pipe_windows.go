//go:build windows

package lsp

import "io"

// NewStdioTransport returns the pipe transport for this platform. Windows
// pipes have no usable non-blocking mode, so the queue-and-thread backend is
// always used.
func NewStdioTransport(stdout io.ReadCloser, stdin io.WriteCloser) (Transport, error) {
	return NewQueuePipeTransport(stdout, stdin), nil
}
