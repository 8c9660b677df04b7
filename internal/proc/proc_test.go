//go:build unix

package proc

import (
	"os/exec"
	"strings"
	"testing"
	"time"
)

func waitExit(t *testing.T, p *Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit before timeout")
	}
}

func TestProcessCleanExit(t *testing.T) {
	p := New(exec.Command("true"))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitExit(t, p)

	if !p.HasExited() {
		t.Error("HasExited() = false after exit")
	}
	if p.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", p.ExitCode())
	}
	if got := p.ExitString(); got != "exited with code 0" {
		t.Errorf("ExitString() = %q", got)
	}
}

func TestProcessNonzeroExit(t *testing.T) {
	p := New(exec.Command("sh", "-c", "exit 3"))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitExit(t, p)

	if p.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", p.ExitCode())
	}
	if got := p.ExitString(); got != "exited with code 3" {
		t.Errorf("ExitString() = %q", got)
	}
}

func TestProcessKilledBySignal(t *testing.T) {
	p := New(exec.Command("sleep", "60"))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
	waitExit(t, p)

	if p.Signal() != 9 {
		t.Errorf("Signal() = %d, want 9", p.Signal())
	}
	got := p.ExitString()
	if !strings.HasPrefix(got, "was killed by signal 9") {
		t.Errorf("ExitString() = %q, want killed-by-signal form", got)
	}
	if !strings.Contains(got, "SIGKILL") && !strings.Contains(got, "killed") {
		t.Errorf("ExitString() = %q, missing signal name", got)
	}
}

func TestProcessStartTwice(t *testing.T) {
	p := New(exec.Command("true"))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	waitExit(t, p)
}

func TestProcessKillAfterExitIsNoop(t *testing.T) {
	p := New(exec.Command("true"))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitExit(t, p)
	if err := p.Kill(); err != nil {
		t.Errorf("Kill() after exit error = %v, want nil", err)
	}
}

func TestProcessNotStarted(t *testing.T) {
	p := New(exec.Command("true"))
	if p.HasExited() {
		t.Error("HasExited() = true before start")
	}
	if p.PID() != -1 {
		t.Errorf("PID() = %d before start, want -1", p.PID())
	}
	if got := p.ExitString(); got != "still running" {
		t.Errorf("ExitString() = %q before exit", got)
	}
	// Wait on an unstarted process returns immediately.
	p.Wait()
}
