// Package engine provides the core simulation logic for mine cart tracks.
//
// The engine package implements:
//   - Parsing ASCII track maps and locating cart markers
//   - Tick-by-tick cart movement in reading order
//   - Curve handling and the left, straight, right intersection cycle
//   - Collision detection with stop or remove crash modes
//   - Track validation and configuration loading (JSON, YAML or raw maps)
//
// Core Types:
//
// The Engine interface defines the main contract for simulation operations,
// implemented by SimEngine. SimState holds the rails, the carts and the crash
// log, while TrackConfig describes a track loaded from disk.
//
// Usage:
//
//	config, err := engine.LoadTrackConfig("tracks/classic.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sim, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	run, err := sim.RunUntilFirstCrash(0)
//	state := sim.GetState()
//
// Track Rules:
//
// Carts (^ > v <) ride on straight rails (| -), turn on curves (/ \) and pick
// left, straight, right in turn at every intersection (+). Each tick moves
// every cart one cell, top row first and left to right within a row. Two carts
// in the same cell crash.
package engine
