package state

import (
	"testing"

	"github.com/wearejh/bs-proxy/internal/config"
	"github.com/wearejh/bs-proxy/internal/planner"
	"github.com/wearejh/bs-proxy/internal/reqlog"
	"github.com/wearejh/bs-proxy/internal/rjsconfig"
)

func TestApplySeedThenSnapshotSeedRoundTrips(t *testing.T) {
	app := New(config.Default(), planner.BundleConfig{})

	baseURL := "/base/"
	seed := Seed{
		ClientConfig: rjsconfig.ClientConfig{
			Deps:    []string{"app/main"},
			Paths:   map[string]string{"jquery": "lib/jquery"},
			BaseURL: &baseURL,
		},
		ReqLog: []reqlog.ModuleData{
			{URL: "/page", ID: "app/main", Referrer: "/home"},
		},
	}

	app.ApplySeed(seed)

	got := app.SnapshotSeed()
	if len(got.ReqLog) != 1 || got.ReqLog[0].ID != "app/main" {
		t.Fatalf("expected rehydrated request log, got %+v", got.ReqLog)
	}
	if len(got.ClientConfig.Deps) != 1 || got.ClientConfig.Deps[0] != "app/main" {
		t.Fatalf("expected rehydrated client config deps, got %+v", got.ClientConfig.Deps)
	}
	if got.ClientConfig.BaseURL == nil || *got.ClientConfig.BaseURL != baseURL {
		t.Fatalf("expected rehydrated base url, got %+v", got.ClientConfig.BaseURL)
	}
}

func TestNewAppStateStartsEmpty(t *testing.T) {
	app := New(config.Default(), planner.BundleConfig{})

	if len(app.ReqLog.Snapshot()) != 0 {
		t.Error("expected empty request log on a fresh AppState")
	}
	if len(app.ClientConfig.Snapshot().Deps) != 0 {
		t.Error("expected empty client config deps on a fresh AppState")
	}
}
