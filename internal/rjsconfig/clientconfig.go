// Package rjsconfig harvests the upstream-generated requirejs-config.js
// loader configuration script into a structured ClientConfig, and holds
// the process-wide shared copy of that configuration.
package rjsconfig

import (
	"encoding/json"
	"sync"
)

// ClientConfig is the merged RequireJS loader configuration recovered
// from the upstream's generated config script, or POSTed back by the
// browser after the host framework finishes merging its own fragments.
type ClientConfig struct {
	Deps    []string          `json:"deps"`
	Paths   map[string]string `json:"paths"`
	Map     json.RawMessage   `json:"map"`
	Config  json.RawMessage   `json:"config"`
	Shim    json.RawMessage   `json:"shim"`
	BaseURL *string           `json:"baseUrl,omitempty"`
}

// Default returns the zero-value ClientConfig with empty-but-present
// collections, matching the shape a fresh session starts with.
func Default() ClientConfig {
	return ClientConfig{
		Deps:   []string{},
		Paths:  map[string]string{},
		Map:    json.RawMessage("{}"),
		Config: json.RawMessage("{}"),
		Shim:   json.RawMessage("{}"),
	}
}

// SharedClientConfig is the process-wide, independently-guarded cell
// holding the current ClientConfig. Whole-value swap (Replace) is
// preferred over field-wise mutation to avoid the partial-update window
// a reader could otherwise observe; UpdateFields exists to mirror the
// POST /__bs/post contract, which updates every field at once anyway.
type SharedClientConfig struct {
	mu     sync.RWMutex
	config ClientConfig
}

// NewShared returns a SharedClientConfig seeded with the zero-value
// configuration.
func NewShared() *SharedClientConfig {
	cfg := Default()
	return &SharedClientConfig{config: cfg}
}

// Snapshot returns a copy of the current configuration.
func (s *SharedClientConfig) Snapshot() ClientConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Replace swaps the entire configuration in one atomic step.
func (s *SharedClientConfig) Replace(cfg ClientConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// UpdateFields replaces deps, map, config, shim and paths together,
// matching the POST /__bs/post contract of §4.G.
func (s *SharedClientConfig) UpdateFields(cfg ClientConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Deps = cfg.Deps
	s.config.Map = cfg.Map
	s.config.Config = cfg.Config
	s.config.Shim = cfg.Shim
	s.config.Paths = cfg.Paths
}

// MergeFromScript parses src as a generated loader-config script and
// merges the result into the shared configuration following the
// loader-config parser's tie-break rules (deps accumulate, scalar keys
// are last-write-wins per IIFE already resolved by Parse).
func (s *SharedClientConfig) MergeFromScript(src string) error {
	parsed, err := Parse(src)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Deps = mergeDeps(s.config.Deps, parsed.Deps)
	for id, value := range parsed.Paths {
		if s.config.Paths == nil {
			s.config.Paths = map[string]string{}
		}
		s.config.Paths[id] = value
	}
	if len(parsed.Map) > 0 {
		s.config.Map = parsed.Map
	}
	if len(parsed.Config) > 0 {
		s.config.Config = parsed.Config
	}
	if len(parsed.Shim) > 0 {
		s.config.Shim = parsed.Shim
	}
	if parsed.BaseURL != nil {
		s.config.BaseURL = parsed.BaseURL
	}
	return nil
}

func mergeDeps(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, d := range existing {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	for _, d := range incoming {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
