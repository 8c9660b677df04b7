// Package wire implements the language-server base protocol: JSON-RPC 2.0
// messages in Content-Length-framed envelopes. It translates between raw
// transport bytes and the session manager's structured events, and owns the
// initialize/shutdown handshakes.
package wire

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/lspmux/internal/lsp"
)

// Handshake request ids. String-typed so they can never collide with the
// numeric ids sessions allocate for completion requests.
const (
	initializeID = "init-1"
	shutdownID   = "shutdown-1"
)

// Codec is a JSON-RPC codec for one session. Not safe for concurrent use;
// a session only touches it from its tick.
type Codec struct {
	out []byte
	in  []byte
}

// New returns a codec with the initialize request already queued, carrying
// the given project root URI.
func New(rootURI string) *Codec {
	c := &Codec{}

	body := `{"jsonrpc":"2.0","method":"initialize"}`
	body, _ = sjson.Set(body, "id", initializeID)
	body, _ = sjson.Set(body, "params.processId", os.Getpid())
	body, _ = sjson.Set(body, "params.rootUri", rootURI)
	body, _ = sjson.Set(body, "params.capabilities.textDocument.completion.completionItem.snippetSupport", false)
	body, _ = sjson.Set(body, "params.capabilities.textDocument.synchronization.didSave", false)
	c.out = append(c.out, frame([]byte(body))...)
	return c
}

// Drain returns all bytes queued since the last call and resets the queue.
func (c *Codec) Drain() []byte {
	out := c.out
	c.out = nil
	return out
}

func (c *Codec) queueNotification(method string, set func(body string) string) {
	body := `{"jsonrpc":"2.0"}`
	body, _ = sjson.Set(body, "method", method)
	if set != nil {
		body = set(body)
	}
	c.out = append(c.out, frame([]byte(body))...)
}

func (c *Codec) queueRequest(method string, id any, set func(body string) string) {
	body := `{"jsonrpc":"2.0"}`
	body, _ = sjson.Set(body, "method", method)
	body, _ = sjson.Set(body, "id", id)
	if set != nil {
		body = set(body)
	}
	c.out = append(c.out, frame([]byte(body))...)
}

// DidOpen queues a textDocument/didOpen notification.
func (c *Codec) DidOpen(uri, languageID, text string, version int) {
	c.queueNotification("textDocument/didOpen", func(body string) string {
		body, _ = sjson.Set(body, "params.textDocument.uri", uri)
		body, _ = sjson.Set(body, "params.textDocument.languageId", languageID)
		body, _ = sjson.Set(body, "params.textDocument.version", version)
		body, _ = sjson.Set(body, "params.textDocument.text", text)
		return body
	})
}

// DidClose queues a textDocument/didClose notification.
func (c *Codec) DidClose(uri string) {
	c.queueNotification("textDocument/didClose", func(body string) string {
		body, _ = sjson.Set(body, "params.textDocument.uri", uri)
		return body
	})
}

// DidChange queues a textDocument/didChange notification with incremental
// edits.
func (c *Codec) DidChange(uri string, version int64, changes []lsp.ContentChange) {
	c.queueNotification("textDocument/didChange", func(body string) string {
		body, _ = sjson.Set(body, "params.textDocument.uri", uri)
		body, _ = sjson.Set(body, "params.textDocument.version", version)
		body, _ = sjson.Set(body, "params.contentChanges", changes)
		return body
	})
}

// Completion queues a textDocument/completion request with the given id.
func (c *Codec) Completion(id int64, uri string, pos lsp.Position) {
	c.queueRequest("textDocument/completion", id, func(body string) string {
		body, _ = sjson.Set(body, "params.textDocument.uri", uri)
		body, _ = sjson.Set(body, "params.position.line", pos.Line)
		body, _ = sjson.Set(body, "params.position.character", pos.Character)
		return body
	})
}

// Shutdown queues the shutdown request.
func (c *Codec) Shutdown() {
	c.queueRequest("shutdown", shutdownID, nil)
}

// Exit queues the exit notification.
func (c *Codec) Exit() {
	c.queueNotification("exit", nil)
}

// Decode consumes raw transport bytes and returns the events completed by
// them. Leftover bytes are buffered for the next call. A framing fault
// drops the buffer so later input can re-synchronize.
func (c *Codec) Decode(data []byte) ([]lsp.Event, error) {
	c.in = append(c.in, data...)

	var events []lsp.Event
	for {
		body, consumed, ok, err := splitFrame(c.in)
		if err != nil {
			c.in = nil
			return events, err
		}
		if !ok {
			return events, nil
		}
		c.in = c.in[consumed:]

		ev, err := c.decodeMessage(body)
		if err != nil {
			return events, err
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
}

// decodeMessage classifies one JSON-RPC message. A nil event with nil error
// means the message was fully handled inside the codec.
func (c *Codec) decodeMessage(body []byte) (lsp.Event, error) {
	msg := gjson.ParseBytes(body)
	if !msg.IsObject() {
		return nil, fmt.Errorf("message is not an object: %.80s", body)
	}

	method := msg.Get("method")
	id := msg.Get("id")

	switch {
	case method.Exists() && id.Exists():
		// Server-to-client request. None are needed for completion
		// plumbing; answer with a null result so the server does not
		// stall waiting.
		reply := `{"jsonrpc":"2.0","result":null}`
		reply, _ = sjson.Set(reply, "id", id.Value())
		c.out = append(c.out, frame([]byte(reply))...)
		return nil, nil

	case method.Exists():
		return c.decodeNotification(msg)

	case id.Exists():
		return c.decodeResponse(msg)

	default:
		return nil, fmt.Errorf("message has neither method nor id: %.80s", body)
	}
}

func (c *Codec) decodeNotification(msg gjson.Result) (lsp.Event, error) {
	method := msg.Get("method").String()
	switch method {
	case "textDocument/publishDiagnostics":
		return decodeDiagnostics(msg.Get("params")), nil

	case "window/logMessage", "window/showMessage":
		return lsp.LogMessageEvent{
			Type:    lsp.MessageType(msg.Get("params.type").Int()),
			Message: msg.Get("params.message").String(),
		}, nil

	default:
		if strings.HasPrefix(method, "$/") {
			// Implementation-dependent notifications may be ignored.
			return nil, nil
		}
		return lsp.UnknownEvent{Method: method}, nil
	}
}

func (c *Codec) decodeResponse(msg gjson.Result) (lsp.Event, error) {
	id := msg.Get("id")

	if rpcErr := msg.Get("error"); rpcErr.Exists() {
		if id.Type == gjson.String {
			return nil, fmt.Errorf("request %s failed: %s", id.String(), rpcErr.Get("message").String())
		}
		// A failed completion still consumes its pending entry; an empty
		// result is the graceful outcome.
		return lsp.CompletionResponseEvent{RequestID: id.Int()}, nil
	}

	switch {
	case id.Type == gjson.String && id.String() == initializeID:
		c.queueNotification("initialized", func(body string) string {
			body, _ = sjson.SetRaw(body, "params", `{}`)
			return body
		})
		return lsp.InitializedEvent{
			Capabilities: msg.Get("result.capabilities").Raw,
		}, nil

	case id.Type == gjson.String && id.String() == shutdownID:
		return lsp.ShutdownAckEvent{}, nil

	case id.Type == gjson.Number:
		return decodeCompletion(id.Int(), msg.Get("result")), nil

	default:
		return nil, fmt.Errorf("response for unknown request id %s", id.Raw)
	}
}

// decodeCompletion handles both response shapes: a bare item array and a
// CompletionList object.
func decodeCompletion(id int64, result gjson.Result) lsp.CompletionResponseEvent {
	ev := lsp.CompletionResponseEvent{RequestID: id}

	items := result
	if result.IsObject() {
		ev.IsIncomplete = result.Get("isIncomplete").Bool()
		items = result.Get("items")
	}
	items.ForEach(func(_, item gjson.Result) bool {
		ev.Items = append(ev.Items, lsp.CompletionItem{
			Label:         item.Get("label").String(),
			InsertText:    item.Get("insertText").String(),
			FilterText:    item.Get("filterText").String(),
			SortText:      item.Get("sortText").String(),
			Documentation: documentationText(item.Get("documentation")),
		})
		return true
	})
	return ev
}

// documentationText flattens the two protocol documentation shapes, plain
// string and MarkupContent, to a string.
func documentationText(doc gjson.Result) string {
	if doc.Type == gjson.String {
		return doc.String()
	}
	return doc.Get("value").String()
}

func decodeDiagnostics(params gjson.Result) lsp.DiagnosticsEvent {
	ev := lsp.DiagnosticsEvent{URI: params.Get("uri").String()}
	params.Get("diagnostics").ForEach(func(_, d gjson.Result) bool {
		ev.Diagnostics = append(ev.Diagnostics, lsp.Diagnostic{
			Range: lsp.Range{
				Start: lsp.Position{
					Line:      int(d.Get("range.start.line").Int()),
					Character: int(d.Get("range.start.character").Int()),
				},
				End: lsp.Position{
					Line:      int(d.Get("range.end.line").Int()),
					Character: int(d.Get("range.end.character").Int()),
				},
			},
			Severity: lsp.DiagnosticSeverity(d.Get("severity").Int()),
			Message:  d.Get("message").String(),
		})
		return true
	})
	return ev
}
