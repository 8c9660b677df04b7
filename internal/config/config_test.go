package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultCoversCommonFiletypes(t *testing.T) {
	cfg := Default()
	for _, name := range []string{"python", "go", "rust", "c", "c++", "typescript"} {
		ft, ok := cfg.FileTypes[name]
		if !ok {
			t.Errorf("default config missing filetype %q", name)
			continue
		}
		if ft.ServerCommand == "" || ft.LanguageID == "" || len(ft.Extensions) == 0 {
			t.Errorf("filetype %q incomplete: %+v", name, ft)
		}
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "lspmux.toml", `
log_level = "debug"

[filetypes.gdscript]
language_id = "gdscript"
server_command = "godot --lsp"
server_port = 6008
extensions = [".gd"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	ft, ok := cfg.FileTypes["gdscript"]
	if !ok {
		t.Fatal("gdscript filetype not loaded")
	}
	if ft.ServerPort != 6008 || ft.ServerCommand != "godot --lsp" {
		t.Errorf("filetype = %+v", ft)
	}
	// Defaults survive the merge.
	if _, ok := cfg.FileTypes["python"]; !ok {
		t.Error("default python filetype lost after merge")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "lspmux.yaml", `
log_level: warn
filetypes:
  python:
    language_id: python
    server_command: jedi-language-server
    extensions: [".py"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	// A filetype named in the file replaces the default wholesale.
	if got := cfg.FileTypes["python"].ServerCommand; got != "jedi-language-server" {
		t.Errorf("python server = %q, want jedi-language-server", got)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "lspmux.ini", "[x]\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil for .ini, want error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("Load() error = nil for missing file, want error")
	}
}

func TestLoadBadTOML(t *testing.T) {
	path := writeConfig(t, "bad.toml", "filetypes = not valid toml [")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil for malformed TOML, want error")
	}
}

func TestForPath(t *testing.T) {
	cfg := Default()

	tests := []struct {
		path     string
		wantLang string
		wantOK   bool
	}{
		{"main.py", "python", true},
		{"dir/sub/main.go", "go", true},
		{"UPPER.PY", "python", true},
		{"header.hpp", "cpp", true},
		{"notes.txt", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		ft, ok := cfg.ForPath(tt.path)
		if ok != tt.wantOK {
			t.Errorf("ForPath(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			continue
		}
		if ok && ft.LanguageID != tt.wantLang {
			t.Errorf("ForPath(%q).LanguageID = %q, want %q", tt.path, ft.LanguageID, tt.wantLang)
		}
	}
}
