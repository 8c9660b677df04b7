package lsp

import (
	"fmt"

	"github.com/dshills/lspmux/internal/logging"
	"github.com/dshills/lspmux/internal/proc"
)

// State is a session's lifecycle phase. Transitions are monotonic:
// Starting → Normal → ShuttingDown → Exited, with Exited reachable directly
// from any earlier state on abnormal death. A session never regresses.
type State int

// Session lifecycle states.
const (
	// Starting: process or socket launched, handshake not complete.
	Starting State = iota
	// Normal: handshake complete, requests may be issued.
	Normal
	// ShuttingDown: shutdown handshake initiated, no new requests.
	ShuttingDown
	// Exited: terminal.
	Exited
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Normal:
		return "normal"
	case ShuttingDown:
		return "shutting-down"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// completionContext is what a pending completion request needs to turn its
// eventual response into an editor-facing result. Consumed exactly once.
type completionContext struct {
	doc    Document
	cursor CursorPos
	extra  any
}

// Session owns one transport and one codec instance for one langserver.
// All session state is confined to the tick goroutine: OnTick, Attach,
// Detach, SendChange and RequestCompletion must only be called from there
// (cross-goroutine callers go through the scheduler's Post).
type Session struct {
	key       SessionKey
	transport Transport
	codec     Codec
	proc      *proc.Process
	registry  *Registry
	log       *logging.Logger

	state    State
	openDocs []Document
	pending  map[int64]completionContext
	nextID   int64
	version  int64

	shuttingDownCleanly bool
	supervising         bool

	diagnostics DiagnosticsSink
}

// NewSession wraps an already-launched transport, codec and process. The
// codec is expected to have queued its initialize request; the session
// starts in Starting and moves to Normal when the handshake completes.
// The process handle may be nil when there is no child to supervise.
func NewSession(key SessionKey, transport Transport, codec Codec, p *proc.Process, registry *Registry, log *logging.Logger) *Session {
	return &Session{
		key:       key,
		transport: transport,
		codec:     codec,
		proc:      p,
		registry:  registry,
		log:       log.WithComponent("session").WithField("key", key.String()),
		state:     Starting,
		pending:   make(map[int64]completionContext),
		nextID:    1,
	}
}

// SetDiagnosticsSink installs the receiver for published diagnostics.
func (s *Session) SetDiagnosticsSink(sink DiagnosticsSink) {
	s.diagnostics = sink
}

// Key returns the session's identity.
func (s *Session) Key() SessionKey { return s.key }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Attach records doc as open on this session. If the handshake has already
// completed, the open notification goes out immediately; otherwise the
// Normal transition replays it.
func (s *Session) Attach(doc Document) {
	if s.state == Exited {
		s.log.Debug("attach ignored, session exited", "uri", doc.URI())
		return
	}
	for _, d := range s.openDocs {
		if d == doc {
			return
		}
	}
	s.openDocs = append(s.openDocs, doc)
	if s.state == Normal {
		s.codec.DidOpen(doc.URI(), doc.LanguageID(), doc.Text(), 0)
	}
}

// Detach removes doc from the open set. Closing the last document initiates
// shutdown: the handshake if the session reached Normal, a direct kill if
// it never did. Detaching from an already-dead session only logs.
func (s *Session) Detach(doc Document) {
	found := false
	for i, d := range s.openDocs {
		if d == doc {
			s.openDocs = append(s.openDocs[:i], s.openDocs[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return
	}

	if s.state == Exited {
		s.log.Debug("detach from exited session", "uri", doc.URI())
		return
	}

	if s.state == Normal {
		s.codec.DidClose(doc.URI())
	}
	if len(s.openDocs) > 0 {
		return
	}

	switch s.state {
	case Normal:
		s.log.Info("last document closed, shutting down")
		s.codec.Shutdown()
		s.state = ShuttingDown
		s.shuttingDownCleanly = true
	case Starting:
		// Handshake never completed; skip it and stop the process.
		s.log.Info("last document closed before handshake, killing server")
		s.state = ShuttingDown
		s.shuttingDownCleanly = true
		if s.proc != nil {
			if err := s.proc.Kill(); err != nil {
				s.log.Warn("kill failed", "error", err)
			}
		}
	}
}

// SendChange emits one change notification for doc carrying the given
// edits. While the session is not Normal this is a no-op: the replay on
// entering Normal sends the then-current full text instead.
func (s *Session) SendChange(doc Document, edits []Edit) {
	if s.state != Normal {
		return
	}
	changes := make([]ContentChange, len(edits))
	for i, e := range edits {
		changes[i] = ContentChange{
			Range: Range{
				Start: ToProtocol(e.Start, doc.Line(e.Start.Line)),
				End:   ToProtocol(e.End, doc.Line(e.End.Line)),
			},
			Text: e.NewText,
		}
	}
	s.version++
	s.codec.DidChange(doc.URI(), s.version, changes)
}

// RequestCompletion issues a completion request at the given cursor. It is
// refused, with a warning, unless the session is Normal. The extra value
// travels with the request and comes back in the result.
func (s *Session) RequestCompletion(doc Document, cursor CursorPos, extra any) bool {
	if s.state != Normal {
		s.log.Warn("completion refused", "state", s.state.String())
		return false
	}
	id := s.nextID
	s.nextID++
	s.pending[id] = completionContext{doc: doc, cursor: cursor, extra: extra}
	s.codec.Completion(id, doc.URI(), ToProtocol(cursor, doc.Line(cursor.Line)))
	return true
}

// OnTick runs one iteration of the dispatch cycle: flush outgoing bytes,
// read, decode, dispatch. Returns false when the session is finished and
// should stop being scheduled.
func (s *Session) OnTick() bool {
	if s.state == Exited {
		return false
	}
	if s.supervising {
		return s.superviseTick()
	}

	if err := s.flush(); err != nil {
		s.fail(fmt.Errorf("transport write: %w", err))
		return s.state != Exited
	}

	data, err := s.transport.Read()
	switch {
	case err == nil:
		s.dispatch(data)
	case err == ErrNoData:
		// Nothing this tick.
	case err == ErrClosed:
		s.log.Debug("transport closed")
		s.supervising = true
	default:
		s.fail(fmt.Errorf("transport read: %w", err))
	}
	return s.state != Exited
}

// flush writes any bytes the codec has queued since the last call.
func (s *Session) flush() error {
	out := s.codec.Drain()
	if len(out) == 0 {
		return nil
	}
	return s.transport.Write(out)
}

// dispatch decodes raw bytes and handles each resulting event in order.
// A decode fault drops this read's events and continues; a fatal event
// tears the session down.
func (s *Session) dispatch(data []byte) {
	events, err := s.codec.Decode(data)
	if err != nil {
		s.log.Warn("decode fault", "error", err)
		return
	}
	for _, ev := range events {
		if err := s.handleEvent(ev); err != nil {
			s.fail(err)
			return
		}
	}
}

// handleEvent processes one protocol event. A returned error is fatal to
// the session; a panic in an editor callback is contained and logged.
func (s *Session) handleEvent(ev Event) (fatal error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("event handler fault", "event", fmt.Sprintf("%T", ev), "panic", r)
			fatal = nil
		}
	}()

	switch ev := ev.(type) {
	case InitializedEvent:
		if s.state != Starting {
			return fmt.Errorf("%w: initialized in state %s", ErrUnknownEvent, s.state)
		}
		s.log.Info("handshake complete")
		s.log.Debug("server capabilities", "capabilities", ev.Capabilities)
		s.state = Normal
		for _, doc := range s.openDocs {
			s.codec.DidOpen(doc.URI(), doc.LanguageID(), doc.Text(), 0)
		}

	case ShutdownAckEvent:
		s.log.Debug("shutdown acknowledged")
		s.codec.Exit()
		if err := s.flush(); err != nil {
			s.log.Warn("exit notification write failed", "error", err)
		}
		// Deregister now; process exit is verified separately.
		s.registry.Remove(s)

	case CompletionResponseEvent:
		ctx, ok := s.pending[ev.RequestID]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrUnmatchedResponse, ev.RequestID)
		}
		delete(s.pending, ev.RequestID)
		line := ctx.doc.Line(ctx.cursor.Line)
		result := buildCompletionResult(ctx, line, ev.IsIncomplete, ev.Items)
		ctx.doc.DeliverCompletion(result)

	case DiagnosticsEvent:
		if s.diagnostics != nil {
			s.diagnostics(ev.URI, ev.Diagnostics)
		}

	case LogMessageEvent:
		s.log.Log(messageLevel(ev.Type), "server message", "message", ev.Message)

	case UnknownEvent:
		return fmt.Errorf("%w: method %q", ErrUnknownEvent, ev.Method)

	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return nil
}

// fail tears the session down after a fatal error: log, close the
// transport, and hand the process to supervision as an unclean death.
func (s *Session) fail(err error) {
	s.log.Error("session failure", "error", err)
	s.shuttingDownCleanly = false
	if err := s.transport.Close(); err != nil {
		s.log.Debug("transport close", "error", err)
	}
	s.supervising = true
	if s.proc == nil {
		s.finish()
	}
}

// superviseTick verifies the child process actually exits after the
// transport closed. Clean shutdowns get an open-ended grace (poll until
// exit, no kill); unexpected closures get an immediate kill. Returns false
// once the session is fully torn down.
func (s *Session) superviseTick() bool {
	if s.proc == nil {
		s.finish()
		return false
	}

	if s.proc.HasExited() {
		if s.shuttingDownCleanly {
			s.log.Info("server exited cleanly", "status", s.proc.ExitString())
		} else {
			s.log.Error("server terminated unexpectedly", "status", s.proc.ExitString())
		}
		s.finish()
		return false
	}

	if s.shuttingDownCleanly {
		// Grace period: keep polling, the server is finishing up.
		return true
	}

	// Unexpected closure with the process still alive: kill it and block
	// briefly for the status. Bounded and terminal, so the one blocking
	// wait is acceptable here.
	if err := s.proc.Kill(); err != nil {
		s.log.Warn("kill failed", "error", err)
	}
	s.proc.Wait()
	s.log.Error("server terminated unexpectedly", "status", s.proc.ExitString())
	s.finish()
	return false
}

// finish moves the session to Exited, discards pending requests, and
// removes it from the registry if it is still the registered entry.
func (s *Session) finish() {
	if s.state == Exited {
		return
	}
	s.state = Exited
	if n := len(s.pending); n > 0 {
		s.log.Debug("discarding pending completions", "count", n)
		s.pending = make(map[int64]completionContext)
	}
	if err := s.transport.Close(); err != nil {
		s.log.Debug("transport close", "error", err)
	}
	s.registry.Remove(s)
}

// messageLevel maps a protocol message type to a log level.
func messageLevel(t MessageType) logging.Level {
	switch t {
	case MessageError:
		return logging.LevelError
	case MessageWarning:
		return logging.LevelWarn
	case MessageInfo:
		return logging.LevelInfo
	default:
		return logging.LevelDebug
	}
}
