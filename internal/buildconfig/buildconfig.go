// Package buildconfig merges a harvested ClientConfig with a planner
// output into a RequireJS optimiser-ready build configuration, and
// generates the companion runtime bundle-loader script.
package buildconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wearejh/bs-proxy/internal/planner"
	"github.com/wearejh/bs-proxy/internal/rjsconfig"
)

const noLoadersFallback = "// no bundles configured\n"

var strippedPrefixes = []string{"http://", "https://", "//"}

// BuildConfig is the RequireJS optimiser configuration document emitted
// at /__bs/build.json.
type BuildConfig struct {
	GenerateSourceMaps bool               `json:"generate_source_maps"`
	InlineText         bool               `json:"inline_text"`
	Optimize           string             `json:"optimize"`
	Deps               []string           `json:"deps"`
	Map                json.RawMessage    `json:"map"`
	Config             json.RawMessage    `json:"config"`
	Shim               json.RawMessage    `json:"shim"`
	Paths              map[string]string  `json:"paths"`
	Modules            []planner.BuildModule `json:"modules"`
}

// Synthesize builds the BuildConfig document from a harvested client
// config and the planner's module list.
func Synthesize(client *rjsconfig.ClientConfig, modules []planner.BuildModule) BuildConfig {
	return BuildConfig{
		GenerateSourceMaps: true,
		InlineText:         true,
		Optimize:           "uglify",
		Deps:               append([]string(nil), client.Deps...),
		Map:                rawOrEmptyObject(client.Map),
		Config:             rawOrEmptyObject(client.Config),
		Shim:               rawOrEmptyObject(client.Shim),
		Paths:              stripPaths(client.Paths),
		Modules:            modules,
	}
}

// stripPaths replaces any path value that begins with http://, https://,
// or // with the literal "empty:", matching the optimiser convention for
// marking a module as externally supplied and therefore excluded from
// the bundle.
func stripPaths(paths map[string]string) map[string]string {
	out := make(map[string]string, len(paths))
	for id, value := range paths {
		stripped := value
		for _, prefix := range strippedPrefixes {
			if strings.HasPrefix(value, prefix) {
				stripped = "empty:"
				break
			}
		}
		out[id] = stripped
	}
	return out
}

func rawOrEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

// LoaderScript renders the runtime bundle-loader script: one
// require.config({bundles:{...}}) block per non-root module, with
// mixin-trigger entry points commented out so the host framework's
// mixin injection is not pre-empted by the loader.
func LoaderScript(client *rjsconfig.ClientConfig, modules []planner.BuildModule) string {
	nonRoot := make([]planner.BuildModule, 0, len(modules))
	for _, m := range modules {
		if m.Create {
			nonRoot = append(nonRoot, m)
		}
	}
	if len(nonRoot) == 0 {
		return noLoadersFallback
	}

	mixins := mixinTriggers(client.Config)

	var b strings.Builder
	for _, m := range nonRoot {
		fmt.Fprintf(&b, "require.config({\n  bundles: {\n    %q: [\n", m.Name)
		for _, id := range m.Include {
			if _, isMixin := mixins[id]; isMixin {
				fmt.Fprintf(&b, "         // mixin trigger: %q,\n", id)
			} else {
				fmt.Fprintf(&b, "        %q,\n", id)
			}
		}
		b.WriteString("    ]\n  }\n});\n")
	}
	return b.String()
}

// mixinTriggers returns the set of module ids that have mixins attached,
// i.e. the top-level keys of config.mixins when that member is an object.
func mixinTriggers(config json.RawMessage) map[string]struct{} {
	result := make(map[string]struct{})
	if len(config) == 0 {
		return result
	}

	var wrapper struct {
		Mixins json.RawMessage `json:"mixins"`
	}
	if err := json.Unmarshal(config, &wrapper); err != nil || len(wrapper.Mixins) == 0 {
		return result
	}

	var mixins map[string]json.RawMessage
	if err := json.Unmarshal(wrapper.Mixins, &mixins); err != nil {
		return result
	}
	for id := range mixins {
		result[id] = struct{}{}
	}
	return result
}
