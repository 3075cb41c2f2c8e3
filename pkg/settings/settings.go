package settings

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings is the YAML-backed configuration for the CLI. Flags and
// environment variables override file values.
type Settings struct {
	Model           string `yaml:"model"`
	APIKey          string `yaml:"api-key"`
	BaseURL         string `yaml:"base-url"`
	ThinkingEnabled bool   `yaml:"thinking"`
	DatabasePath    string `yaml:"database"`
	LogLevel        string `yaml:"log-level"`
}

func NewSettings() *Settings {
	return &Settings{
		Model:        "gpt-4o-mini",
		DatabasePath: defaultDatabasePath(),
		LogLevel:     "info",
	}
}

// LoadFromFile overlays values from a YAML file onto the defaults. A missing
// file is not an error; a malformed one is.
func (s *Settings) LoadFromFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "could not read settings file %s", path)
	}
	if err := yaml.Unmarshal(b, s); err != nil {
		return errors.Wrapf(err, "could not parse settings file %s", path)
	}
	return nil
}

func defaultDatabasePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".parley", "parley.db")
}
