package lsp

// CursorPos is an editor coordinate: 1-based line, 0-based character column
// counted in runes. This matches the host editor's convention; the protocol
// instead wants 0-based lines and UTF-16 code-unit columns.
type CursorPos struct {
	Line   int
	Column int
}

// Edit is one editor-issued document change in editor coordinates.
type Edit struct {
	Start   CursorPos
	End     CursorPos
	NewText string
}

// ToProtocol converts an editor position to a protocol position, using the
// text of the position's line to translate the rune column into UTF-16 code
// units. A column at or past the end of the line maps to one past the last
// character (the offset the protocol expects for end-of-line insertions).
func ToProtocol(pos CursorPos, lineText string) Position {
	line := pos.Line - 1
	if line < 0 {
		line = 0
	}
	return Position{
		Line:      line,
		Character: runeToUTF16Offset(lineText, pos.Column),
	}
}

// runeToUTF16Offset converts a rune offset within s to UTF-16 code units.
// Offsets past the end of s clamp to the full UTF-16 length.
func runeToUTF16Offset(s string, runeOff int) int {
	if runeOff <= 0 {
		return 0
	}

	runeCount := 0
	utf16Off := 0
	for _, r := range s {
		if runeCount >= runeOff {
			return utf16Off
		}
		if r >= 0x10000 {
			utf16Off += 2
		} else {
			utf16Off++
		}
		runeCount++
	}
	return utf16Off
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
