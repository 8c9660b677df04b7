package lsp

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// SessionKey identifies one langserver session. Two documents with equal
// keys share one session. Port zero means stdio transport; a non-zero port
// means the server listens on localhost TCP.
type SessionKey struct {
	Command     string
	Port        int
	ProjectRoot string
}

// NewSessionKey builds a key, resolving the project root to an absolute
// path. The command string is used verbatim.
func NewSessionKey(command string, port int, projectRoot string) (SessionKey, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return SessionKey{}, fmt.Errorf("resolve project root: %w", err)
	}
	return SessionKey{Command: command, Port: port, ProjectRoot: abs}, nil
}

// String renders the key for logs.
func (k SessionKey) String() string {
	if k.Port != 0 {
		return fmt.Sprintf("%s:%d@%s", k.Command, k.Port, k.ProjectRoot)
	}
	return fmt.Sprintf("%s@%s", k.Command, k.ProjectRoot)
}

// projectRootMarkers are the filenames whose presence marks a directory as
// a project root.
var projectRootMarkers = []string{
	".git",
	".editorconfig",
	"README", "README.txt", "README.md", "README.rst",
	"readme", "readme.txt", "readme.md", "readme.rst",
	"go.mod",
	"pyproject.toml",
	"setup.py",
	"Cargo.toml",
	"package.json",
}

// FindProjectRoot walks up from the file's directory looking for a marker
// file. If no marker is found anywhere up to the filesystem root, the file's
// own directory is the project root.
func FindProjectRoot(path string) string {
	dir := filepath.Dir(path)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}

	for d := abs; ; {
		for _, marker := range projectRootMarkers {
			if _, err := os.Stat(filepath.Join(d, marker)); err == nil {
				return d
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			return abs
		}
		d = parent
	}
}

// FileURI converts a filesystem path to a file:// URI.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
