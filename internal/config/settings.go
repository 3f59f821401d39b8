package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings are runtime knobs that are not part of a project configuration:
// which generator to use, timeouts, where run history lives.
type Settings struct {
	Backend  string        `mapstructure:"backend"`  // claude, codex, goose, gemini or mock
	Command  string        `mapstructure:"command"`  // Binary override for CLI backends
	Model    string        `mapstructure:"model"`    // Model override passed to the backend
	Provider string        `mapstructure:"provider"` // Goose local provider (ollama, lmstudio, ...)
	APIKey   string        `mapstructure:"api_key"`  // Gemini API key
	Timeout  time.Duration `mapstructure:"timeout"`  // Per generation call, 0 disables
	Policy   string        `mapstructure:"policy"`   // fail_fast or best_effort, empty defers to the project
	Retry    bool          `mapstructure:"retry"`    // Retry transient generation failures
	DBPath   string        `mapstructure:"db"`       // Run history database, empty disables history
	Testing  bool          `mapstructure:"testing"`  // Force the mock backend
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	dbPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".scaffold", "history.db")
	}
	return Settings{
		Backend: "claude",
		Retry:   true,
		DBPath:  dbPath,
	}
}

// DefaultSettingsPath is ~/.scaffold/settings.yaml.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".scaffold", "settings.yaml")
}

// NewSettingsViper returns a viper instance with defaults and environment
// bindings applied. Callers bind command-line flags on top before calling
// LoadSettings.
func NewSettingsViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault("backend", defaults.Backend)
	v.SetDefault("command", defaults.Command)
	v.SetDefault("model", defaults.Model)
	v.SetDefault("provider", defaults.Provider)
	v.SetDefault("api_key", defaults.APIKey)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("policy", defaults.Policy)
	v.SetDefault("retry", defaults.Retry)
	v.SetDefault("db", defaults.DBPath)
	v.SetDefault("testing", defaults.Testing)

	v.SetEnvPrefix("SCAFFOLD")
	v.AutomaticEnv()

	_ = v.BindEnv("api_key", "SCAFFOLD_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	return v
}

// LoadSettings reads an optional settings file into v and decodes the result.
// A missing file is not an error. An empty path uses DefaultSettingsPath.
func LoadSettings(v *viper.Viper, path string) (*Settings, error) {
	if path == "" {
		path = DefaultSettingsPath()
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			switch {
			case errors.As(err, &notFound):
			case errors.Is(err, os.ErrNotExist):
			default:
				return nil, fmt.Errorf("reading settings %s: %w", path, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	if s.Testing {
		s.Backend = "mock"
	}

	return &s, nil
}
