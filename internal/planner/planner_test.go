package planner

import (
	"reflect"
	"sort"
	"testing"

	"github.com/wearejh/bs-proxy/internal/reqlog"
)

func TestPlan_RootModuleIsAlwaysFirst(t *testing.T) {
	out := Plan(nil, BundleConfig{})
	if len(out) != 1 {
		t.Fatalf("expected exactly the root module, got %+v", out)
	}
	want := BuildModule{Name: rootModuleName, Include: []string{}, Exclude: []string{}, Create: false}
	if !reflect.DeepEqual(out[0], want) {
		t.Errorf("got %+v, want %+v", out[0], want)
	}
}

func TestPlan_SingleBundleHTMLEntry(t *testing.T) {
	cfg := BundleConfig{
		Bundles: []ConfigItem{
			{Name: "main", URLs: []string{"/"}, Children: nil},
		},
	}
	reqs := []reqlog.ModuleData{
		{URL: "x/home.html", ID: "home", Referrer: "/"},
	}

	out := Plan(reqs, cfg)
	if len(out) != 2 {
		t.Fatalf("expected root + main, got %+v", out)
	}
	main := out[1]
	if !reflect.DeepEqual(main.Include, []string{"text!home.html"}) {
		t.Errorf("expected include [text!home.html], got %v", main.Include)
	}
	if !reflect.DeepEqual(main.Exclude, []string{rootModuleName}) {
		t.Errorf("expected exclude [requirejs/require], got %v", main.Exclude)
	}
}

func TestPlan_NestedBundlesDedupByAncestor(t *testing.T) {
	cfg := BundleConfig{
		Bundles: []ConfigItem{
			{
				Name: "main",
				URLs: []string{"/"},
				Children: []ConfigItem{
					{Name: "cart", URLs: []string{"/cart"}},
				},
			},
		},
	}
	reqs := []reqlog.ModuleData{
		{URL: "/a.js", ID: "a", Referrer: "/"},
		{URL: "/a.js", ID: "a", Referrer: "/cart"},
		{URL: "/b.js", ID: "b", Referrer: "/cart"},
	}

	out := Plan(reqs, cfg)

	var main, cart *BuildModule
	for i := range out {
		switch out[i].Name {
		case "main":
			main = &out[i]
		case "cart":
			cart = &out[i]
		}
	}
	if main == nil || cart == nil {
		t.Fatalf("expected main and cart modules, got %+v", out)
	}

	if !reflect.DeepEqual(main.Include, []string{"a"}) {
		t.Errorf(`expected main.include = ["a"], got %v`, main.Include)
	}
	if !reflect.DeepEqual(cart.Include, []string{"b"}) {
		t.Errorf(`expected cart.include = ["b"] (not ["a","b"]), got %v`, cart.Include)
	}
	if !reflect.DeepEqual(cart.Exclude, []string{rootModuleName, "main"}) {
		t.Errorf(`expected cart.exclude = ["requirejs/require","main"], got %v`, cart.Exclude)
	}
}

func TestPlan_IncludeSortedAndDeduplicated(t *testing.T) {
	cfg := BundleConfig{
		Bundles: []ConfigItem{
			{Name: "main", URLs: []string{"/"}},
		},
	}
	reqs := []reqlog.ModuleData{
		{URL: "/z.js", ID: "z", Referrer: "/"},
		{URL: "/a.js", ID: "a", Referrer: "/"},
		{URL: "/a2.js", ID: "a", Referrer: "/"},
	}

	out := Plan(reqs, cfg)
	main := out[1]

	if !sort.StringsAreSorted(main.Include) {
		t.Errorf("expected sorted include, got %v", main.Include)
	}
	seen := map[string]bool{}
	for _, id := range main.Include {
		if seen[id] {
			t.Errorf("duplicate id %q in include", id)
		}
		seen[id] = true
	}
}

func TestPlan_BlacklistExcludesModule(t *testing.T) {
	cfg := BundleConfig{
		Bundles:         []ConfigItem{{Name: "main", URLs: []string{"/"}}},
		ModuleBlacklist: []string{"blocked"},
	}
	reqs := []reqlog.ModuleData{
		{URL: "/blocked.js", ID: "blocked", Referrer: "/"},
		{URL: "/ok.js", ID: "ok", Referrer: "/"},
	}

	out := Plan(reqs, cfg)
	main := out[1]
	if !reflect.DeepEqual(main.Include, []string{"ok"}) {
		t.Errorf("expected only ok, got %v", main.Include)
	}
}

func TestPlan_DefaultBlacklistAlwaysApplied(t *testing.T) {
	cfg := BundleConfig{Bundles: []ConfigItem{{Name: "main", URLs: []string{"/"}}}}
	reqs := []reqlog.ModuleData{
		{URL: "/js-translation.js", ID: "js-translation", Referrer: "/"},
	}

	out := Plan(reqs, cfg)
	main := out[1]
	if len(main.Include) != 0 {
		t.Errorf("expected js-translation filtered by default, got %v", main.Include)
	}
}

func TestPlan_SiblingsMayRepeatIDs(t *testing.T) {
	cfg := BundleConfig{
		Bundles: []ConfigItem{
			{Name: "left", URLs: []string{"/left"}},
			{Name: "right", URLs: []string{"/right"}},
		},
	}
	reqs := []reqlog.ModuleData{
		{URL: "/shared.js", ID: "shared", Referrer: "/left"},
		{URL: "/shared.js", ID: "shared", Referrer: "/right"},
	}

	out := Plan(reqs, cfg)
	var left, right *BuildModule
	for i := range out {
		switch out[i].Name {
		case "left":
			left = &out[i]
		case "right":
			right = &out[i]
		}
	}
	if !reflect.DeepEqual(left.Include, []string{"shared"}) || !reflect.DeepEqual(right.Include, []string{"shared"}) {
		t.Errorf("expected independent branches to both include shared, got left=%v right=%v", left.Include, right.Include)
	}
}
