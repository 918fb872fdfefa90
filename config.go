// config.go — linter settings.
//
// Settings come from an optional JSON file, .pinelint.json in the working
// directory unless a path is given. Keys missing from the file keep their
// defaults; command-line flags are applied on top by the caller.
package pine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ConfigFileName is the settings file looked up in the working directory.
const ConfigFileName = ".pinelint.json"

// Config holds linter settings.
type Config struct {
	// Version is the language version for sources without //@version.
	Version int `json:"version"`
	// UnusedAllowlist names variables never reported as unused.
	UnusedAllowlist []string `json:"unusedAllowlist"`
	// Warnings keeps warning diagnostics; false reports errors only.
	Warnings bool `json:"warnings"`
	// Addr is the listen address of the HTTP server.
	Addr string `json:"addr"`
	// Indent is the formatter's block indent width.
	Indent int `json:"indent"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Version:  DefaultLanguageVersion,
		Warnings: true,
		Addr:     ":8970",
		Indent:   DefaultIndent,
	}
}

// LoadConfig reads settings from path. An empty path means ConfigFileName,
// whose absence is not an error; an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = ConfigFileName
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Version < 1 {
		return fmt.Errorf("version must be positive, got %d", c.Version)
	}
	if c.Indent < 1 || c.Indent > 16 {
		return fmt.Errorf("indent must be between 1 and 16, got %d", c.Indent)
	}
	return nil
}

// Options converts the settings to validator options.
func (c *Config) Options() Options {
	return Options{Version: c.Version, UnusedAllowlist: c.UnusedAllowlist}
}

// Filter drops warnings unless they are enabled.
func (c *Config) Filter(diags []Diagnostic) []Diagnostic {
	if c.Warnings {
		return diags
	}
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}
