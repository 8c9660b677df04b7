// Package runner executes project shell commands (builds, test runs,
// scripts) and pumps their output to the editor a few lines per tick, so a
// chatty command never stalls the main loop.
package runner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/lspmux/internal/logging"
	"github.com/dshills/lspmux/internal/lsp"
	"github.com/dshills/lspmux/internal/proc"
)

// maxLinesPerTick bounds how much output one tick forwards; the rest stays
// queued for the next tick.
const maxLinesPerTick = 10

// Kind classifies one output item.
type Kind int

const (
	// KindCommand echoes the command line itself, sent once at start.
	KindCommand Kind = iota
	// KindOutput is a line of combined stdout and stderr.
	KindOutput
	// KindStatus is the final exit summary.
	KindStatus
)

// Sink receives output items in order. Called from the tick goroutine,
// except for the initial command echo, which is synchronous with Start.
type Sink func(kind Kind, text string)

type item struct {
	kind Kind
	text string
}

// Job is one running command. Schedule OnTick to pump its output.
type Job struct {
	// ID identifies the job in logs and editor UI.
	ID string

	command string
	proc    *proc.Process
	stdin   io.WriteCloser
	sink    Sink
	log     *logging.Logger

	mu         sync.Mutex
	queue      []item
	readerDone bool
	killed     bool

	readerExit chan struct{}
	finished   bool
}

// Start launches the command in dir with stdout and stderr combined. The
// command line is echoed to the sink before any output.
func Start(command, dir string, log *logging.Logger, sink Sink) (*Job, error) {
	argv, err := lsp.SplitCommand(command)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("output pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = outW

	stdin, err := cmd.StdinPipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	p := proc.New(cmd)
	if err := p.Start(); err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("start %q: %w", command, err)
	}
	outW.Close()

	j := &Job{
		ID:         uuid.NewString(),
		command:    command,
		proc:       p,
		stdin:      stdin,
		sink:       sink,
		log:        log.WithComponent("runner").WithField("job", command),
		readerExit: make(chan struct{}),
	}
	j.log.Info("command started", "pid", p.PID(), "id", j.ID)
	sink(KindCommand, command)

	go j.readLoop(outR)
	return j, nil
}

// readLoop pushes output lines to the queue, then the exit summary once the
// process is gone.
func (j *Job) readLoop(r *os.File) {
	defer close(j.readerExit)
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		j.push(item{kind: KindOutput, text: scanner.Text()})
	}

	j.proc.Wait()
	status := "The process completed successfully."
	if j.proc.ExitCode() != 0 {
		status = fmt.Sprintf("The process failed: %s.", j.proc.ExitString())
	}
	j.push(item{kind: KindStatus, text: status})

	j.mu.Lock()
	j.readerDone = true
	j.mu.Unlock()
}

func (j *Job) push(it item) {
	j.mu.Lock()
	j.queue = append(j.queue, it)
	j.mu.Unlock()
}

// take removes up to n queued items. n < 0 takes everything. Status items
// are dropped after a kill; the caller substitutes its own final line.
func (j *Job) take(n int) (items []item, done bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	count := len(j.queue)
	if n >= 0 && count > n {
		count = n
	}
	for _, it := range j.queue[:count] {
		if j.killed && it.kind == KindStatus {
			continue
		}
		items = append(items, it)
	}
	j.queue = j.queue[count:]
	return items, j.readerDone && len(j.queue) == 0
}

// OnTick forwards a bounded batch of queued output. Returns false once the
// process has exited and everything has been forwarded.
func (j *Job) OnTick() bool {
	if j.finished {
		return false
	}
	items, done := j.take(maxLinesPerTick)
	for _, it := range items {
		j.sink(it.kind, it.text)
	}
	if done {
		j.finished = true
		j.log.Info("command finished", "status", j.proc.ExitString())
		return false
	}
	return true
}

// Stop kills the process, synchronously drains all remaining output in
// order, and emits "Killed." as the final line. The exit summary of the
// killed process is suppressed; the kill is not a failure of the command.
func (j *Job) Stop() {
	j.mu.Lock()
	if j.finished || j.killed {
		j.mu.Unlock()
		return
	}
	j.killed = true
	j.mu.Unlock()

	if err := j.proc.Kill(); err != nil {
		j.log.Warn("kill failed", "error", err)
	}

	// The pipe closes when the process dies, so the reader exits promptly.
	<-j.readerExit

	items, _ := j.take(-1)
	for _, it := range items {
		j.sink(it.kind, it.text)
	}
	j.sink(KindStatus, "Killed.")
	j.finished = true
	j.log.Info("command killed", "id", j.ID)
}

// WriteStdin sends text to the command's standard input.
func (j *Job) WriteStdin(text string) error {
	if _, err := io.WriteString(j.stdin, text); err != nil {
		return fmt.Errorf("write stdin: %w", err)
	}
	return nil
}

// CloseStdin closes the command's standard input, signalling end of input.
func (j *Job) CloseStdin() error {
	return j.stdin.Close()
}
