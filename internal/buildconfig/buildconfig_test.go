package buildconfig

import (
	"strings"
	"testing"

	"github.com/wearejh/bs-proxy/internal/planner"
	"github.com/wearejh/bs-proxy/internal/rjsconfig"
)

func TestSynthesize_StripsAbsolutePaths(t *testing.T) {
	client := rjsconfig.Default()
	client.Paths = map[string]string{
		"one": "one/one",
		"two": "http://x/y",
	}

	got := Synthesize(&client, nil)

	if got.Paths["one"] != "one/one" {
		t.Errorf("expected one/one unchanged, got %q", got.Paths["one"])
	}
	if got.Paths["two"] != "empty:" {
		t.Errorf("expected empty:, got %q", got.Paths["two"])
	}
}

func TestSynthesize_Defaults(t *testing.T) {
	client := rjsconfig.Default()
	got := Synthesize(&client, nil)

	if !got.GenerateSourceMaps || !got.InlineText || got.Optimize != "uglify" {
		t.Errorf("unexpected defaults: %+v", got)
	}
}

func TestLoaderScript_EmptyModulesEmitsFallback(t *testing.T) {
	client := rjsconfig.Default()
	modules := []planner.BuildModule{
		{Name: "requirejs/require", Include: []string{}, Exclude: []string{}, Create: false},
	}

	got := LoaderScript(&client, modules)
	if !strings.Contains(got, "no bundles configured") {
		t.Errorf("expected fallback comment, got %q", got)
	}
}

func TestLoaderScript_CommentsOutMixinTriggers(t *testing.T) {
	client := rjsconfig.Default()
	client.Config = []byte(`{"mixins":{"mage/trigger":true}}`)

	modules := []planner.BuildModule{
		{Name: "requirejs/require", Create: false},
		{Name: "bundles/main", Include: []string{"mage/trigger", "plain/module"}, Exclude: []string{"requirejs/require"}, Create: true},
	}

	got := LoaderScript(&client, modules)

	if !strings.Contains(got, `// mixin trigger: "mage/trigger"`) {
		t.Errorf("expected mixin trigger comment, got:\n%s", got)
	}
	if !strings.Contains(got, `        "plain/module",`) {
		t.Errorf("expected plain module include line, got:\n%s", got)
	}
}
