package lsp

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"unicode"

	"github.com/google/uuid"

	"github.com/dshills/lspmux/internal/logging"
	"github.com/dshills/lspmux/internal/proc"
)

// CodecFactory builds the codec for a new session. The root URI is the
// session's project root as a file:// URI, used in the initialize request
// the codec queues at construction.
type CodecFactory func(rootURI string) Codec

// Launch starts the langserver described by key and wraps it in a Session.
// Port zero talks to the child over stdio; a non-zero port starts the child
// and connects to it on localhost TCP. The returned session is Starting;
// schedule its OnTick to drive the handshake.
func Launch(key SessionKey, registry *Registry, log *logging.Logger, newCodec CodecFactory) (*Session, error) {
	argv, err := SplitCommand(key.Command)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty langserver command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = key.ProjectRoot

	// Pipes are created by hand so the process's wait cannot close them
	// underneath the transport's reads.
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stderr = stderrW

	var stdoutR, stdinW *os.File
	if key.Port == 0 {
		var stdoutW, stdinR *os.File
		stdoutR, stdoutW, err = os.Pipe()
		if err != nil {
			stderrR.Close()
			stderrW.Close()
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		stdinR, stdinW, err = os.Pipe()
		if err != nil {
			stderrR.Close()
			stderrW.Close()
			stdoutR.Close()
			stdoutW.Close()
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		cmd.Stdout = stdoutW
		cmd.Stdin = stdinR
		defer stdoutW.Close()
		defer stdinR.Close()
	}
	defer stderrW.Close()

	p := proc.New(cmd)
	if err := p.Start(); err != nil {
		stderrR.Close()
		if stdoutR != nil {
			stdoutR.Close()
		}
		if stdinW != nil {
			stdinW.Close()
		}
		return nil, fmt.Errorf("start langserver %q: %w", key.Command, err)
	}

	sessionLog := log.WithField("instance", uuid.NewString()[:8])
	go logStderr(stderrR, sessionLog)

	var transport Transport
	if key.Port == 0 {
		transport, err = NewStdioTransport(stdoutR, stdinW)
		if err != nil {
			p.Kill()
			return nil, err
		}
	} else {
		transport = NewSocketTransport(key.Port)
	}

	codec := newCodec(FileURI(key.ProjectRoot))
	s := NewSession(key, transport, codec, p, registry, sessionLog)
	s.log.Info("langserver launched", "pid", p.PID(), "port", key.Port)
	return s, nil
}

// logStderr forwards the server's stderr lines to the log. Langservers put
// their own diagnostics there; it is noise unless something goes wrong.
func logStderr(r *os.File, log *logging.Logger) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Debug("server stderr", "line", scanner.Text())
	}
}

// SplitCommand splits a shell-style command string into argv, honoring
// single quotes, double quotes and backslash escapes.
func SplitCommand(s string) ([]string, error) {
	var args []string
	var cur []rune
	var quote rune
	escaped := false
	inToken := false

	for _, r := range s {
		switch {
		case escaped:
			cur = append(cur, r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inToken = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur = append(cur, r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				args = append(args, string(cur))
				cur = cur[:0]
				inToken = false
			}
		default:
			cur = append(cur, r)
			inToken = true
		}
	}
	if escaped || quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command %q", s)
	}
	if inToken {
		args = append(args, string(cur))
	}
	return args, nil
}
