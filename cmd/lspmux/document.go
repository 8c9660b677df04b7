package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dshills/lspmux/internal/lsp"
)

// fileDocument is a read-only lsp.Document backed by a file's on-disk
// content, enough for a one-shot completion request.
type fileDocument struct {
	uri        string
	languageID string
	text       string
	lines      []string

	result *lsp.CompletionResult
}

func openDocument(path, languageID string) (*fileDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(data)
	return &fileDocument{
		uri:        lsp.FileURI(path),
		languageID: languageID,
		text:       text,
		lines:      strings.Split(text, "\n"),
	}, nil
}

func (d *fileDocument) URI() string        { return d.uri }
func (d *fileDocument) LanguageID() string { return d.languageID }
func (d *fileDocument) Text() string       { return d.text }

func (d *fileDocument) Line(n int) string {
	if n < 1 || n > len(d.lines) {
		return ""
	}
	return strings.TrimSuffix(d.lines[n-1], "\r")
}

func (d *fileDocument) DeliverCompletion(result lsp.CompletionResult) {
	d.result = &result
}
