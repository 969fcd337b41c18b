// Package state defines AppState, the process-wide value shared by
// every request handler: immutable program configuration plus the two
// independently-guarded mutable cells (request log, client config).
package state

import (
	"github.com/wearejh/bs-proxy/internal/config"
	"github.com/wearejh/bs-proxy/internal/planner"
	"github.com/wearejh/bs-proxy/internal/reqlog"
	"github.com/wearejh/bs-proxy/internal/rjsconfig"
)

// AppState is shared by every request handler for the lifetime of the
// process. Only ReqLog and ClientConfig are mutable after construction.
type AppState struct {
	ProgramConfig config.Config
	BundleConfig  planner.BundleConfig

	ReqLog       *reqlog.Log
	ClientConfig *rjsconfig.SharedClientConfig
}

// New constructs an AppState with fresh, empty mutable cells.
func New(programConfig config.Config, bundleConfig planner.BundleConfig) *AppState {
	return &AppState{
		ProgramConfig: programConfig,
		BundleConfig:  bundleConfig,
		ReqLog:        reqlog.New(),
		ClientConfig:  rjsconfig.NewShared(),
	}
}

// Seed is the shape of the seed file used to rehydrate an AppState at
// startup, skipping re-crawling an already-known page set.
type Seed struct {
	ClientConfig rjsconfig.ClientConfig `json:"rjs_client_config"`
	ReqLog       []reqlog.ModuleData    `json:"req_log"`
}

// ApplySeed rehydrates the shared cells from a previously captured seed.
func (s *AppState) ApplySeed(seed Seed) {
	s.ClientConfig.Replace(seed.ClientConfig)
	s.ReqLog.Replace(seed.ReqLog)
}

// SnapshotSeed captures the current shared state in the seed file shape,
// the inverse of ApplySeed, served by GET /__bs/seed.json.
func (s *AppState) SnapshotSeed() Seed {
	return Seed{
		ClientConfig: s.ClientConfig.Snapshot(),
		ReqLog:       s.ReqLog.Snapshot(),
	}
}
