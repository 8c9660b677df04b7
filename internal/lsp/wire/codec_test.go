package wire

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/dshills/lspmux/internal/lsp"
)

func framed(body string) []byte {
	return []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))
}

// drainMessages splits everything the codec has queued into JSON bodies.
func drainMessages(t *testing.T, c *Codec) []gjson.Result {
	t.Helper()
	data := c.Drain()
	var bodies []gjson.Result
	for len(data) > 0 {
		body, consumed, ok, err := splitFrame(data)
		if err != nil {
			t.Fatalf("splitFrame() error = %v", err)
		}
		if !ok {
			t.Fatalf("incomplete frame in drained output: %q", data)
		}
		bodies = append(bodies, gjson.ParseBytes(body))
		data = data[consumed:]
	}
	return bodies
}

func TestNewQueuesInitialize(t *testing.T) {
	c := New("file:///home/me/proj")

	msgs := drainMessages(t, c)
	if len(msgs) != 1 {
		t.Fatalf("queued messages = %d, want 1", len(msgs))
	}
	init := msgs[0]
	if got := init.Get("method").String(); got != "initialize" {
		t.Errorf("method = %q, want initialize", got)
	}
	if got := init.Get("id").String(); got != initializeID {
		t.Errorf("id = %q, want %q", got, initializeID)
	}
	if got := init.Get("params.rootUri").String(); got != "file:///home/me/proj" {
		t.Errorf("rootUri = %q", got)
	}

	// Drain is destructive.
	if out := c.Drain(); len(out) != 0 {
		t.Errorf("second Drain() = %d bytes, want 0", len(out))
	}
}

func TestInitializeResponseEmitsEventAndInitialized(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	resp := `{"jsonrpc":"2.0","id":"init-1","result":{"capabilities":{"completionProvider":{}}}}`
	events, err := c.Decode(framed(resp))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev, ok := events[0].(lsp.InitializedEvent)
	if !ok {
		t.Fatalf("event type = %T, want InitializedEvent", events[0])
	}
	if !strings.Contains(ev.Capabilities, "completionProvider") {
		t.Errorf("Capabilities = %q, missing completionProvider", ev.Capabilities)
	}

	msgs := drainMessages(t, c)
	if len(msgs) != 1 || msgs[0].Get("method").String() != "initialized" {
		t.Fatalf("queued after init response = %v, want initialized notification", msgs)
	}
}

func TestDecodeSplitAcrossReads(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	full := framed(`{"jsonrpc":"2.0","id":"shutdown-1","result":null}`)
	half := len(full) / 2

	events, err := c.Decode(full[:half])
	if err != nil {
		t.Fatalf("Decode(first half) error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events after half a frame = %d, want 0", len(events))
	}

	events, err = c.Decode(full[half:])
	if err != nil {
		t.Fatalf("Decode(second half) error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if _, ok := events[0].(lsp.ShutdownAckEvent); !ok {
		t.Fatalf("event type = %T, want ShutdownAckEvent", events[0])
	}
}

func TestDecodeMultipleMessagesInOneRead(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	var buf []byte
	buf = append(buf, framed(`{"jsonrpc":"2.0","method":"window/logMessage","params":{"type":3,"message":"one"}}`)...)
	buf = append(buf, framed(`{"jsonrpc":"2.0","method":"window/logMessage","params":{"type":1,"message":"two"}}`)...)

	events, err := c.Decode(buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	first := events[0].(lsp.LogMessageEvent)
	second := events[1].(lsp.LogMessageEvent)
	if first.Message != "one" || second.Message != "two" {
		t.Errorf("messages out of order: %q, %q", first.Message, second.Message)
	}
	if first.Type != lsp.MessageInfo || second.Type != lsp.MessageError {
		t.Errorf("types = %v, %v", first.Type, second.Type)
	}
}

func TestDecodeCompletionList(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	resp := `{"jsonrpc":"2.0","id":7,"result":{"isIncomplete":true,"items":[` +
		`{"label":"print","insertText":"print","sortText":"a","documentation":"print docs"},` +
		`{"label":"property","documentation":{"kind":"markdown","value":"md docs"}}]}}`
	events, err := c.Decode(framed(resp))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ev, ok := events[0].(lsp.CompletionResponseEvent)
	if !ok {
		t.Fatalf("event type = %T", events[0])
	}
	if ev.RequestID != 7 {
		t.Errorf("RequestID = %d, want 7", ev.RequestID)
	}
	if !ev.IsIncomplete {
		t.Error("IsIncomplete = false, want true")
	}
	if len(ev.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(ev.Items))
	}
	if ev.Items[0].Documentation != "print docs" {
		t.Errorf("string documentation = %q", ev.Items[0].Documentation)
	}
	if ev.Items[1].Documentation != "md docs" {
		t.Errorf("markup documentation = %q", ev.Items[1].Documentation)
	}
}

func TestDecodeCompletionBareArray(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	resp := `{"jsonrpc":"2.0","id":3,"result":[{"label":"len"}]}`
	events, err := c.Decode(framed(resp))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ev := events[0].(lsp.CompletionResponseEvent)
	if ev.RequestID != 3 || len(ev.Items) != 1 || ev.Items[0].Label != "len" {
		t.Errorf("event = %+v", ev)
	}
}

func TestDecodeCompletionErrorConsumesRequest(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	resp := `{"jsonrpc":"2.0","id":5,"error":{"code":-32601,"message":"nope"}}`
	events, err := c.Decode(framed(resp))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ev, ok := events[0].(lsp.CompletionResponseEvent)
	if !ok {
		t.Fatalf("event type = %T", events[0])
	}
	if ev.RequestID != 5 || len(ev.Items) != 0 {
		t.Errorf("event = %+v, want empty result for id 5", ev)
	}
}

func TestDecodeDiagnostics(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	resp := `{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{` +
		`"uri":"file:///a.py","diagnostics":[{"range":{"start":{"line":1,"character":2},` +
		`"end":{"line":1,"character":5}},"severity":2,"message":"unused"}]}}`
	events, err := c.Decode(framed(resp))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ev := events[0].(lsp.DiagnosticsEvent)
	if ev.URI != "file:///a.py" {
		t.Errorf("URI = %q", ev.URI)
	}
	d := ev.Diagnostics[0]
	if d.Severity != lsp.SeverityWarning || d.Message != "unused" {
		t.Errorf("diagnostic = %+v", d)
	}
	if d.Range.Start != (lsp.Position{Line: 1, Character: 2}) {
		t.Errorf("range start = %+v", d.Range.Start)
	}
}

func TestDecodeUnknownNotification(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	events, err := c.Decode(framed(`{"jsonrpc":"2.0","method":"workspace/bogus","params":{}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ev, ok := events[0].(lsp.UnknownEvent)
	if !ok {
		t.Fatalf("event type = %T, want UnknownEvent", events[0])
	}
	if ev.Method != "workspace/bogus" {
		t.Errorf("Method = %q", ev.Method)
	}
}

func TestDecodeDollarNotificationIgnored(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	events, err := c.Decode(framed(`{"jsonrpc":"2.0","method":"$/progress","params":{}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0 for $-prefixed notification", len(events))
	}
}

func TestServerRequestAnsweredWithNull(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	events, err := c.Decode(framed(`{"jsonrpc":"2.0","id":42,"method":"workspace/configuration","params":{}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0 for server request", len(events))
	}

	msgs := drainMessages(t, c)
	if len(msgs) != 1 {
		t.Fatalf("queued replies = %d, want 1", len(msgs))
	}
	if got := msgs[0].Get("id").Int(); got != 42 {
		t.Errorf("reply id = %d, want 42", got)
	}
	if msgs[0].Get("result").Type != gjson.Null {
		t.Errorf("reply result = %s, want null", msgs[0].Get("result").Raw)
	}
}

func TestDecodeFramingFaultDropsBuffer(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	_, err := c.Decode([]byte("Garbage-Header\r\n\r\n"))
	if err == nil {
		t.Fatal("Decode() error = nil for malformed header, want error")
	}

	// Framing recovers on the next well-formed input.
	events, err := c.Decode(framed(`{"jsonrpc":"2.0","id":"shutdown-1","result":null}`))
	if err != nil {
		t.Fatalf("Decode() after fault error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events after recovery = %d, want 1", len(events))
	}
}

func TestOutgoingNotificationShapes(t *testing.T) {
	c := New("file:///p")
	c.Drain()

	c.DidOpen("file:///a.py", "python", "x = 1\n", 0)
	c.DidChange("file:///a.py", 4, []lsp.ContentChange{{
		Range: lsp.Range{
			Start: lsp.Position{Line: 0, Character: 4},
			End:   lsp.Position{Line: 0, Character: 5},
		},
		Text: "2",
	}})
	c.Completion(9, "file:///a.py", lsp.Position{Line: 0, Character: 6})
	c.DidClose("file:///a.py")
	c.Shutdown()
	c.Exit()

	msgs := drainMessages(t, c)
	if len(msgs) != 6 {
		t.Fatalf("queued messages = %d, want 6", len(msgs))
	}

	open := msgs[0]
	if open.Get("method").String() != "textDocument/didOpen" {
		t.Errorf("method = %q", open.Get("method").String())
	}
	if open.Get("params.textDocument.version").Int() != 0 {
		t.Errorf("didOpen version = %d, want 0", open.Get("params.textDocument.version").Int())
	}

	change := msgs[1]
	if change.Get("params.textDocument.version").Int() != 4 {
		t.Errorf("didChange version = %d, want 4", change.Get("params.textDocument.version").Int())
	}
	if got := change.Get("params.contentChanges.0.range.start.character").Int(); got != 4 {
		t.Errorf("change start character = %d, want 4", got)
	}
	if got := change.Get("params.contentChanges.0.text").String(); got != "2" {
		t.Errorf("change text = %q, want 2", got)
	}

	completion := msgs[2]
	if completion.Get("id").Int() != 9 {
		t.Errorf("completion id = %d, want 9", completion.Get("id").Int())
	}
	if completion.Get("params.position.character").Int() != 6 {
		t.Errorf("completion character = %d", completion.Get("params.position.character").Int())
	}

	if msgs[3].Get("method").String() != "textDocument/didClose" {
		t.Errorf("method = %q", msgs[3].Get("method").String())
	}
	shutdown := msgs[4]
	if shutdown.Get("method").String() != "shutdown" || shutdown.Get("id").String() != shutdownID {
		t.Errorf("shutdown message = %s", shutdown.Raw)
	}
	exit := msgs[5]
	if exit.Get("method").String() != "exit" || exit.Get("id").Exists() {
		t.Errorf("exit message = %s", exit.Raw)
	}
}

func TestSplitFrameHeaderCaseInsensitive(t *testing.T) {
	body := `{"jsonrpc":"2.0"}`
	raw := []byte(fmt.Sprintf("content-length: %d\r\nContent-Type: application/json\r\n\r\n%s", len(body), body))

	got, consumed, ok, err := splitFrame(raw)
	if err != nil || !ok {
		t.Fatalf("splitFrame() = ok %v, err %v", ok, err)
	}
	if string(got) != body {
		t.Errorf("body = %q, want %q", got, body)
	}
	if consumed != len(raw) {
		t.Errorf("consumed = %d, want %d", consumed, len(raw))
	}
}
