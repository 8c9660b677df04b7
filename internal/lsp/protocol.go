package lsp

// Position is a protocol text position: zero-based line, with the character
// offset counted in UTF-16 code units (the protocol convention).
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open protocol text range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// ContentChange is one incremental document edit: the replaced range and
// its replacement text.
type ContentChange struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
}

// CompletionItem is one completion candidate as the server sent it.
type CompletionItem struct {
	Label         string
	InsertText    string
	FilterText    string
	SortText      string
	Documentation string
}

// DiagnosticSeverity is the severity of a published diagnostic.
type DiagnosticSeverity int

// Diagnostic severities, per the protocol.
const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Diagnostic is one published diagnostic.
type Diagnostic struct {
	Range    Range
	Severity DiagnosticSeverity
	Message  string
}

// MessageType is the level of a langserver log message.
type MessageType int

// Log message types, per the protocol.
const (
	MessageError MessageType = iota + 1
	MessageWarning
	MessageInfo
	MessageLog
)

// Event is a structured protocol event produced by a Codec. The concrete
// types below are the only kinds a Session accepts; anything else is a
// protocol invariant violation.
type Event interface {
	event()
}

// InitializedEvent signals that the initialization handshake completed.
type InitializedEvent struct {
	// Capabilities is the server's capability object, raw JSON. The
	// session logs it but does not interpret it.
	Capabilities string
}

// ShutdownAckEvent signals that the server acknowledged a shutdown request.
type ShutdownAckEvent struct{}

// CompletionResponseEvent carries the candidates for one completion request.
type CompletionResponseEvent struct {
	RequestID    int64
	IsIncomplete bool
	Items        []CompletionItem
}

// DiagnosticsEvent carries published diagnostics for one document.
type DiagnosticsEvent struct {
	URI         string
	Diagnostics []Diagnostic
}

// LogMessageEvent carries a leveled log message from the server.
type LogMessageEvent struct {
	Type    MessageType
	Message string
}

// UnknownEvent is produced by a codec for a message it can frame but not
// classify. Sessions treat it as fatal.
type UnknownEvent struct {
	Method string
}

func (InitializedEvent) event()        {}
func (ShutdownAckEvent) event()        {}
func (CompletionResponseEvent) event() {}
func (DiagnosticsEvent) event()        {}
func (LogMessageEvent) event()         {}
func (UnknownEvent) event()            {}

// Codec translates between raw transport bytes and structured protocol
// events. A codec instance belongs to exactly one Session and is only
// touched from that session's tick.
//
// The codec owns the initialization and shutdown handshakes: it queues the
// initialize request at construction and emits InitializedEvent when the
// server's response arrives. Outgoing messages are queued internally and
// collected with Drain once per tick.
type Codec interface {
	// Drain returns all bytes queued for sending since the last call.
	Drain() []byte

	// Decode consumes raw bytes from the transport and returns the
	// structured events they complete, in order. A decode fault is
	// returned as an error; the bytes consumed so far are dropped and
	// the codec may recover framing on subsequent input.
	Decode(data []byte) ([]Event, error)

	// DidOpen queues a document-open notification.
	DidOpen(uri, languageID, text string, version int)

	// DidClose queues a document-close notification.
	DidClose(uri string)

	// DidChange queues a document-change notification.
	DidChange(uri string, version int64, changes []ContentChange)

	// Completion queues a completion request with the given id.
	Completion(id int64, uri string, pos Position)

	// Shutdown queues the shutdown request.
	Shutdown()

	// Exit queues the exit notification.
	Exit()
}
