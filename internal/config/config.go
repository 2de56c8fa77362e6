package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	vperrors "github.com/systmms/vaultops/internal/errors"
	"github.com/systmms/vaultops/internal/logging"
	"github.com/systmms/vaultops/internal/vault"
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the vaultops.yaml structure
type Definition struct {
	Version       int          `yaml:"version"`
	Vault         vault.Config `yaml:"vault"`
	MaxConcurrent int          `yaml:"maxConcurrent,omitempty"`
	Manifests     []string     `yaml:"manifests,omitempty"`
}

// Load reads and parses the vaultops.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return vperrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a vaultops.yaml or pass --config pointing at one",
			}
		}
		return vperrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return vperrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return vperrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your vaultops.yaml file",
		}
	}
	if def.MaxConcurrent < 0 {
		return vperrors.ConfigError{
			Field:      "maxConcurrent",
			Value:      def.MaxConcurrent,
			Message:    "concurrency limit must not be negative",
			Suggestion: "Remove 'maxConcurrent' to use the default, or set a positive number",
		}
	}

	def.Vault.ApplyEnvOverrides()
	applyEnvOverrides(&def)

	c.Definition = &def
	return nil
}

// applyEnvOverrides merges VAULTOPS_* environment variables over file settings.
func applyEnvOverrides(def *Definition) {
	if raw := os.Getenv("VAULTOPS_MAX_CONCURRENT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			def.MaxConcurrent = n
		}
	}
}

// ManifestPaths returns the manifest files and directories to load, falling
// back to CLI arguments when the config names none.
func (c *Config) ManifestPaths(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if c.Definition != nil && len(c.Definition.Manifests) > 0 {
		return c.Definition.Manifests, nil
	}
	return nil, vperrors.ConfigError{
		Field:      "manifests",
		Message:    "no manifests to apply",
		Suggestion: "List manifest files under 'manifests:' in vaultops.yaml or pass them as arguments",
	}
}
