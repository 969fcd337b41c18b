// Package planner walks a user-supplied nested bundle tree against a
// filtered request log to produce an ordered list of build modules with
// correct include/exclude sets, mirroring the RequireJS optimiser's
// "modules" configuration array.
package planner

import (
	"path"
	"sort"

	"github.com/wearejh/bs-proxy/internal/reqlog"
)

// rootModuleName is the implicit loader module that every build
// configuration's modules array begins with.
const rootModuleName = "requirejs/require"

// blacklistedByDefault is unconditionally excluded from planning
// regardless of the user's module_blacklist.
const blacklistedByDefault = "js-translation"

// ConfigItem is one node of the user-supplied bundle tree.
type ConfigItem struct {
	Name     string       `yaml:"name" json:"name"`
	URLs     []string     `yaml:"urls" json:"urls"`
	Children []ConfigItem `yaml:"children" json:"children"`
}

// BundleConfig is the root of the user-supplied bundle tree plus the set
// of module ids that should never appear in any build module.
type BundleConfig struct {
	Bundles         []ConfigItem `yaml:"bundles" json:"bundles"`
	ModuleBlacklist []string     `yaml:"module_blacklist" json:"module_blacklist"`
}

// BuildModule is one entry of the planner's output: a named group of
// modules with the entry points it should include and the ancestor
// bundle names it must exclude.
type BuildModule struct {
	Name    string   `json:"name"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
	Create  bool     `json:"create"`
}

// Plan walks cfg.Bundles against reqs, returning the ordered sequence of
// BuildModule described in the bundle planner design: a root module
// first, followed by one entry per bundle tree node visited depth-first.
func Plan(reqs []reqlog.ModuleData, cfg BundleConfig) []BuildModule {
	filtered := filterBlacklisted(reqs, effectiveBlacklist(cfg.ModuleBlacklist))

	out := []BuildModule{{
		Name:    rootModuleName,
		Include: []string{},
		Exclude: []string{},
		Create:  false,
	}}

	return collect(out, filtered, cfg.Bundles, nil, []string{rootModuleName})
}

func effectiveBlacklist(userBlacklist []string) map[string]struct{} {
	set := make(map[string]struct{}, len(userBlacklist)+1)
	set[blacklistedByDefault] = struct{}{}
	for _, id := range userBlacklist {
		set[id] = struct{}{}
	}
	return set
}

func filterBlacklisted(reqs []reqlog.ModuleData, blacklist map[string]struct{}) []reqlog.ModuleData {
	out := make([]reqlog.ModuleData, 0, len(reqs))
	for _, r := range reqs {
		if _, blocked := blacklist[r.ID]; blocked {
			continue
		}
		out = append(out, r)
	}
	return out
}

// collect performs the depth-first traversal described in the bundle
// planner design: prev accumulates module ids already assigned to an
// ancestor on this root-to-leaf path, and exclude accumulates ancestor
// bundle names (always containing the root loader name).
func collect(acc []BuildModule, reqs []reqlog.ModuleData, children []ConfigItem, prev []string, exclude []string) []BuildModule {
	prevSet := toSet(prev)

	for _, node := range children {
		candidates := collectCandidates(reqs, node.URLs, prevSet)

		acc = append(acc, BuildModule{
			Name:    node.Name,
			Include: candidates,
			Exclude: append([]string(nil), exclude...),
			Create:  true,
		})

		nextPrev := append(append([]string(nil), prev...), candidates...)
		nextExclude := append(append([]string(nil), exclude...), node.Name)

		acc = collect(acc, reqs, node.Children, nextPrev, nextExclude)
	}

	return acc
}

func collectCandidates(reqs []reqlog.ModuleData, urls []string, prevSet map[string]struct{}) []string {
	matchURLs := toSet(urls)

	candidates := make([]string, 0)
	seen := make(map[string]struct{})
	for _, r := range reqs {
		if _, ok := matchURLs[r.Referrer]; !ok {
			continue
		}
		entry := entryPoint(r)
		if _, inPrev := prevSet[entry]; inPrev {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		candidates = append(candidates, entry)
	}

	sort.Strings(candidates)
	return candidates
}

// entryPoint derives the build-module entry-point string for a single
// request log entry: HTML templates are wrapped with the text! plugin
// prefix, everything else passes through as the raw module id.
func entryPoint(d reqlog.ModuleData) string {
	if path.Ext(d.URL) == ".html" {
		return "text!" + d.ID + ".html"
	}
	return d.ID
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
