// Package config loads the optional settings file. Settings only pre-fill
// the two paths the user can edit and choose how much gets logged.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const appName = "cardshift"

// Settings mirrors config.yaml.
type Settings struct {
	// InputDir is where the file picker starts. "~" expands to the home
	// directory. Default: ~/Desktop, or the working directory if that is
	// missing.
	InputDir string `yaml:"input_dir"`

	// OutputPath pre-fills the output field. Default: empty.
	OutputPath string `yaml:"output_path"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFile receives log output while the terminal UI is running.
	// Empty disables logging in the UI.
	LogFile string `yaml:"log_file"`
}

// DefaultPath returns the settings location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, "config.yaml"), nil
}

// Default returns settings with every default applied.
func Default() *Settings {
	s := &Settings{}
	applyDefaults(s)
	return s
}

// Load reads settings from path. A missing file yields the defaults unless
// required is set.
func Load(path string, required bool) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&s)

	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &s, nil
}

// Level returns the parsed log level.
func (s *Settings) Level() log.Level {
	lvl, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func applyDefaults(s *Settings) {
	if s.InputDir == "" {
		s.InputDir = "~/Desktop"
	}
	s.InputDir = expandHome(s.InputDir)

	// The picker needs a directory that exists.
	if info, err := os.Stat(s.InputDir); err != nil || !info.IsDir() {
		if wd, err := os.Getwd(); err == nil {
			s.InputDir = wd
		}
	}

	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	s.LogFile = expandHome(s.LogFile)
	s.OutputPath = expandHome(s.OutputPath)
}

func validate(s *Settings) error {
	if _, err := log.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log_level %q: %w", s.LogLevel, err)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
