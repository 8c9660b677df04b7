package lsp

// Document is the session manager's view of an open editor buffer. The
// editor layer implements it; sessions only ever call it from the tick
// goroutine.
type Document interface {
	// URI returns the document's file URI.
	URI() string

	// LanguageID returns the protocol language identifier, e.g. "python".
	LanguageID() string

	// Text returns the full current text.
	Text() string

	// Line returns the text of the given 1-based line without its trailing
	// newline. Out-of-range lines return the empty string.
	Line(n int) string

	// DeliverCompletion receives the result of a completion request this
	// document issued. Called asynchronously, from the tick goroutine.
	DeliverCompletion(result CompletionResult)
}

// DiagnosticsSink receives published diagnostics for a document. Rendering
// is the editor's concern; sessions forward diagnostics unchanged.
type DiagnosticsSink func(uri string, diags []Diagnostic)
