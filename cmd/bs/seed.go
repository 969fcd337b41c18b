package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/wearejh/bs-proxy/internal/state"
)

// loadSeed reads and decodes the seed file given via --seed, used to
// rehydrate the request log and shared client config at startup so the
// process doesn't need a fresh browsing session before it can answer
// /__bs/build.json.
func loadSeed(path string) (state.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return state.Seed{}, fmt.Errorf("read seed file: %w", err)
	}

	var seed state.Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return state.Seed{}, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}
