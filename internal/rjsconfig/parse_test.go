package rjsconfig

import (
	"encoding/json"
	"testing"
)

func TestParse_MergesDepsAcrossIIFEs(t *testing.T) {
	src := `
(function() {
    var config = {
        deps: ["one", "two"],
        paths: {"a": "path/a"}
    };
    require.config(config);
})();
(function() {
    var config = {
        deps: ["three", "one"]
    };
    require.config(config);
})();
`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	want := []string{"one", "two", "three"}
	if len(got.Deps) != len(want) {
		t.Fatalf("got deps %v, want %v", got.Deps, want)
	}
	for i, d := range want {
		if got.Deps[i] != d {
			t.Errorf("index %d: got %q, want %q", i, got.Deps[i], d)
		}
	}

	if got.Paths["a"] != "path/a" {
		t.Errorf("expected paths[a] = path/a, got %q", got.Paths["a"])
	}
}

func TestParse_LastWriteWinsOnScalarPaths(t *testing.T) {
	src := `
(function() {
    var config = { paths: {"a": "first"} };
    require.config(config);
})();
(function() {
    var config = { paths: {"a": "second"} };
    require.config(config);
})();
`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if got.Paths["a"] != "second" {
		t.Errorf("expected last-write-wins, got %q", got.Paths["a"])
	}
}

func TestParse_PreservesMixinConfig(t *testing.T) {
	src := `
var config = {
    config: {
        mixins: {
            "Magento_Ui/js/form/form": true
        }
    }
};
require.config(config);
`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(got.Config) == 0 {
		t.Fatal("expected non-empty config")
	}
}

func TestParse_MergesMixinsAcrossIIFEs(t *testing.T) {
	src := `
(function() {
    var config = {
        config: {
            mixins: {
                "jquery/jstree/jquery.jstree": {
                    "mage/backend/jstree-mixin": true
                }
            }
        }
    };
    require.config(config);
})();
(function() {
    var config = {
        config: {
            mixins: {
                "jquery/jstree/jquery.jstree": {
                    "mage/backend/jstree-mixin2": {}
                }
            }
        }
    };
    require.config(config);
})();
`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	var config struct {
		Mixins map[string]map[string]json.RawMessage `json:"mixins"`
	}
	if err := json.Unmarshal(got.Config, &config); err != nil {
		t.Fatalf("expected valid config JSON, got %q: %v", got.Config, err)
	}

	module := config.Mixins["jquery/jstree/jquery.jstree"]
	if module == nil {
		t.Fatalf("expected mixins entry for jquery/jstree/jquery.jstree, got %+v", config.Mixins)
	}
	if _, ok := module["mage/backend/jstree-mixin"]; !ok {
		t.Errorf("expected first IIFE's mixin to survive the second IIFE's merge, got %+v", module)
	}
	if _, ok := module["mage/backend/jstree-mixin2"]; !ok {
		t.Errorf("expected second IIFE's mixin to be present, got %+v", module)
	}
}

func TestParse_InvalidSourceFails(t *testing.T) {
	_, err := Parse("this is not { valid javascript (")
	if err == nil {
		t.Fatal("expected parse error on invalid source")
	}
}

func TestParse_UnknownMembersIgnored(t *testing.T) {
	src := `
var config = {
    deps: ["a"],
    somethingUnexpected: { nested: true }
};
require.config(config);
`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(got.Deps) != 1 || got.Deps[0] != "a" {
		t.Errorf("expected deps=[a], got %v", got.Deps)
	}
}
