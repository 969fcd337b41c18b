package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadBundleConfig reads and decodes the bundle config file at path
// (YAML or JSON, selected by extension), per the external bundle config
// file contract. An empty path returns an empty BundleConfig so the
// proxy can run with no bundles planned at all.
func LoadBundleConfig(path string) (BundleConfig, error) {
	if path == "" {
		return BundleConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return BundleConfig{}, fmt.Errorf("read bundle config %q: %w", path, err)
	}

	var cfg BundleConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return BundleConfig{}, fmt.Errorf("parse bundle config %q: %w", path, err)
	}
	return cfg, nil
}
