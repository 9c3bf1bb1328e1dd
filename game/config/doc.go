// Package config provides track configuration management for the mine cart simulator.
//
// The config package handles:
//   - Loading tracks from JSON, YAML or raw .txt map files
//   - Track validation through the engine package
//   - Default track selection
//   - Track discovery and listing
//
// Track Files:
//
// Tracks live in the tracks directory. A track id resolves to the first of
// <id>.json, <id>.yaml, <id>.yml and <id>.txt that exists. Structured files
// carry a name, description, layout, crash mode, tick limit and messages;
// raw maps are the puzzle input as-is and run in remove mode.
//
// Usage:
//
//	manager, err := config.NewManager("tracks")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	track, err := manager.LoadConfig("classic")
//	tracks, err := manager.ListConfigs()
package config
