// Package config loads and validates the program configuration file: the
// ordered list of presets to enable and their per-preset options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BasicAuth is a pass-through upstream credential pair applied to every
// outbound proxied request.
type BasicAuth struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// PresetOptions holds the options accepted by the one currently
// supported preset, "m2".
type PresetOptions struct {
	RequirePath     string    `yaml:"require_path" json:"require_path"`
	RequireConfPath string    `yaml:"require_conf_path" json:"require_conf_path"`
	BundleConfig    string    `yaml:"bundle_config" json:"bundle_config"`
	ModuleBlacklist []string  `yaml:"module_blacklist" json:"module_blacklist"`
	AuthBasic       BasicAuth `yaml:"auth_basic" json:"auth_basic"`
}

// Preset is one entry of the program config's preset list.
type Preset struct {
	Name    string        `yaml:"name" json:"name"`
	Options PresetOptions `yaml:"options" json:"options"`
}

// Config is the decoded program configuration file.
type Config struct {
	Presets []Preset `yaml:"presets" json:"presets"`
}

// Default returns an empty configuration: no presets enabled, matching
// the behaviour of running the proxy with no --config flag at all.
func Default() Config {
	return Config{}
}

// Load reads and decodes the program configuration file at path, which
// may be YAML or JSON depending on its extension, then validates it.
// An empty path is not an error — it returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg back to path as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// validate enforces the schema constraints documented in the program
// configuration file contract: only the "m2" preset name is recognised.
func (c Config) validate() error {
	for _, p := range c.Presets {
		if p.Name != "m2" {
			return fmt.Errorf("unsupported preset %q: only \"m2\" is currently supported", p.Name)
		}
	}
	return nil
}
