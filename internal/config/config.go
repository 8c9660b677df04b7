// Package config holds per-filetype langserver settings: which command to
// launch (or port to connect to) and which protocol language identifier to
// announce for files of each type.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileType describes the langserver for one family of files. An empty
// ServerCommand means no langserver is configured: completions are simply
// unavailable for those files, which is not an error.
type FileType struct {
	// LanguageID is the protocol language identifier, e.g. "python".
	LanguageID string `toml:"language_id" yaml:"language_id"`

	// ServerCommand launches the server, split shell-style.
	ServerCommand string `toml:"server_command" yaml:"server_command"`

	// ServerPort, when non-zero, makes the session connect to the server
	// on localhost TCP instead of its stdio.
	ServerPort int `toml:"server_port" yaml:"server_port"`

	// Extensions are the file extensions, with leading dot, that map to
	// this filetype.
	Extensions []string `toml:"extensions" yaml:"extensions"`
}

// Config is the loaded configuration.
type Config struct {
	// LogLevel is the minimum log level: debug, info, warn or error.
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// FileTypes maps a filetype name to its langserver settings.
	FileTypes map[string]FileType `toml:"filetypes" yaml:"filetypes"`
}

// Default returns the built-in configuration, covering the common
// langservers. User files loaded on top of it override per filetype.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		FileTypes: map[string]FileType{
			"python": {
				LanguageID:    "python",
				ServerCommand: "pylsp",
				Extensions:    []string{".py", ".pyw"},
			},
			"go": {
				LanguageID:    "go",
				ServerCommand: "gopls",
				Extensions:    []string{".go"},
			},
			"rust": {
				LanguageID:    "rust",
				ServerCommand: "rust-analyzer",
				Extensions:    []string{".rs"},
			},
			"c": {
				LanguageID:    "c",
				ServerCommand: "clangd",
				Extensions:    []string{".c", ".h"},
			},
			"c++": {
				LanguageID:    "cpp",
				ServerCommand: "clangd",
				Extensions:    []string{".cpp", ".cc", ".hpp", ".cxx"},
			},
			"typescript": {
				LanguageID:    "typescript",
				ServerCommand: "typescript-language-server --stdio",
				Extensions:    []string{".ts", ".tsx"},
			},
			"javascript": {
				LanguageID:    "javascript",
				ServerCommand: "typescript-language-server --stdio",
				Extensions:    []string{".js", ".jsx", ".mjs"},
			},
		},
	}
}

// Load reads a TOML or YAML config file, chosen by extension, and merges it
// over the defaults. Filetypes named in the file replace the default entry
// of the same name wholesale.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	cfg := Default()
	if loaded.LogLevel != "" {
		cfg.LogLevel = loaded.LogLevel
	}
	for name, ft := range loaded.FileTypes {
		cfg.FileTypes[name] = ft
	}
	return cfg, nil
}

// ForPath returns the filetype settings for a file, matched by extension.
func (c *Config) ForPath(path string) (FileType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return FileType{}, false
	}
	for _, ft := range c.FileTypes {
		for _, e := range ft.Extensions {
			if strings.ToLower(e) == ext {
				return ft, true
			}
		}
	}
	return FileType{}, false
}
