package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// ProjectFile is the per-directory override file.
const ProjectFile = ".traceconfig"

// Config holds all configurable trace settings.
type Config struct {
	SchemaDir      string   `json:"schema_dir"`      // empty: embedded schemas
	QueueDir       string   `json:"queue_dir"`       // offline pending queue
	MIDICategories string   `json:"midi_categories"` // empty: built-in CC map
	DefaultTags    []string `json:"default_tags"`    // added to every CLI marker
	Verbose        bool     `json:"verbose"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		QueueDir:    defaultQueueDir(),
		DefaultTags: []string{},
	}
}

// defaultQueueDir is $XDG_DATA_HOME/trace/pending, falling back to
// ~/.local/share when XDG_DATA_HOME is unset.
func defaultQueueDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".trace", "pending")
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "trace", "pending")
}

// GlobalPath is ~/.config/trace/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "trace", "config.json"), nil
}

// LoadGlobal reads ~/.config/trace/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .traceconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(ProjectFile, false)
}

// Load reads both files and merges them.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, err
	}
	return Merge(global, project), nil
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults. Verbose is on if either
// file turns it on.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, c := range []*Config{global, project} {
		if c == nil {
			continue
		}
		if c.SchemaDir != "" {
			result.SchemaDir = c.SchemaDir
		}
		if c.QueueDir != "" {
			result.QueueDir = c.QueueDir
		}
		if c.MIDICategories != "" {
			result.MIDICategories = c.MIDICategories
		}
		if len(c.DefaultTags) > 0 {
			result.DefaultTags = c.DefaultTags
		}
		result.Verbose = result.Verbose || c.Verbose
	}
	return result
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
