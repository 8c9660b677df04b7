package lsp

import "testing"

func TestToProtocol(t *testing.T) {
	tests := []struct {
		name string
		pos  CursorPos
		line string
		want Position
	}{
		{"ascii", CursorPos{Line: 3, Column: 4}, "hello world", Position{Line: 2, Character: 4}},
		{"line is one based", CursorPos{Line: 1, Column: 0}, "x", Position{Line: 0, Character: 0}},
		{"bmp runes are one unit", CursorPos{Line: 1, Column: 2}, "héllo", Position{Line: 0, Character: 2}},
		{"astral runes are two units", CursorPos{Line: 1, Column: 2}, "a\U0001F600b", Position{Line: 0, Character: 3}},
		{"end of line insertion", CursorPos{Line: 1, Column: 5}, "hello", Position{Line: 0, Character: 5}},
		{"column past end clamps", CursorPos{Line: 1, Column: 99}, "hello", Position{Line: 0, Character: 5}},
		{"past end with astral", CursorPos{Line: 1, Column: 99}, "a\U0001F600", Position{Line: 0, Character: 3}},
		{"negative line clamps", CursorPos{Line: 0, Column: 0}, "", Position{Line: 0, Character: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToProtocol(tt.pos, tt.line); got != tt.want {
				t.Errorf("ToProtocol(%+v, %q) = %+v, want %+v", tt.pos, tt.line, got, tt.want)
			}
		})
	}
}

func TestUTF16Len(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"héllo", 5},
		{"\U0001F600", 2},
		{"a\U0001F600b", 4},
	}
	for _, tt := range tests {
		if got := utf16Len(tt.s); got != tt.want {
			t.Errorf("utf16Len(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}
