package lsp

import (
	"sort"
	"strings"
	"unicode"
)

// Candidate is one editor-facing completion choice, with the already-typed
// prefix folded into its replace range and filter text.
type Candidate struct {
	// DisplayText is the label shown in the completion popup.
	DisplayText string

	// ReplaceStart and ReplaceEnd delimit the text the replacement covers:
	// from the start of the typed prefix to the cursor.
	ReplaceStart CursorPos
	ReplaceEnd   CursorPos

	// ReplacementText is inserted over the replace range when the
	// candidate is accepted.
	ReplacementText string

	// FilterText is what the editor's matcher filters against. The typed
	// prefix is stripped so only the remainder is matched.
	FilterText string

	// Documentation is shown alongside the candidate.
	Documentation string
}

// CompletionResult is delivered to the requesting document when its
// completion response arrives.
type CompletionResult struct {
	Cursor       CursorPos
	Extra        any
	IsIncomplete bool
	Candidates   []Candidate
}

// buildCompletionResult turns a server response into an editor-facing
// result, using the text of the cursor's line to find the typed prefix.
func buildCompletionResult(ctx completionContext, lineText string, isIncomplete bool, items []CompletionItem) CompletionResult {
	prefix := typedPrefix(lineText, ctx.cursor.Column)
	prefixLen := len([]rune(prefix))
	start := CursorPos{Line: ctx.cursor.Line, Column: ctx.cursor.Column - prefixLen}

	// Stable sort: explicit server sort key when present, else label, ties
	// kept in server order.
	sorted := make([]CompletionItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return completionSortKey(sorted[i]) < completionSortKey(sorted[j])
	})

	candidates := make([]Candidate, 0, len(sorted))
	for _, item := range sorted {
		replacement := item.InsertText
		if replacement == "" {
			replacement = item.Label
		}
		filterSource := item.FilterText
		if filterSource == "" {
			filterSource = item.InsertText
		}
		if filterSource == "" {
			filterSource = item.Label
		}

		candidates = append(candidates, Candidate{
			DisplayText:     item.Label,
			ReplaceStart:    start,
			ReplaceEnd:      ctx.cursor,
			ReplacementText: replacement,
			FilterText:      stripRunePrefix(filterSource, prefixLen),
			Documentation:   synthesizeDoc(item.Label, item.Documentation),
		})
	}

	return CompletionResult{
		Cursor:       ctx.cursor,
		Extra:        ctx.extra,
		IsIncomplete: isIncomplete,
		Candidates:   candidates,
	}
}

// completionSortKey is the server's sort text when given, else the label.
func completionSortKey(item CompletionItem) string {
	if item.SortText != "" {
		return item.SortText
	}
	return item.Label
}

// typedPrefix returns the longest run of word characters immediately before
// the cursor column on the given line.
func typedPrefix(lineText string, column int) string {
	runes := []rune(lineText)
	if column > len(runes) {
		column = len(runes)
	}
	if column < 0 {
		column = 0
	}
	i := column
	for i > 0 && isWordRune(runes[i-1]) {
		i--
	}
	return string(runes[i:column])
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// stripRunePrefix drops the first n runes of s.
func stripRunePrefix(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if n >= len(runes) {
		return ""
	}
	return string(runes[n:])
}

// synthesizeDoc builds the documentation string for a candidate. Servers
// often begin the documentation with the signature the label already shows;
// in that case the documentation stands alone, otherwise the label is
// prepended so the popup still shows the signature.
func synthesizeDoc(label, doc string) string {
	label = strings.TrimSpace(label)
	if doc == "" {
		return label
	}
	if strings.HasPrefix(doc, label) {
		return doc
	}
	return label + "\n\n" + doc
}
