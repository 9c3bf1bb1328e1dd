// Command validate checks every track file (.json, .yaml, .yml, .txt) in a
// directory, ../tracks by default. It checks:
//   - the file decodes and passes track validation (rails, carts, crash mode, limits)
//   - the simulation runs without a cart leaving the rails
//   - the simulation reaches a result within the track's tick limit
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/minecart/game/engine"
)

var trackPatterns = []string{"*.json", "*.yaml", "*.yml", "*.txt"}

// ValidationResult captures the outcome of validating a single file.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...any) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// validateTrack loads a single track file, validates it and runs it.
func validateTrack(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.DecodeTrackConfig(filePath, data)
	if err != nil {
		result.fail("Invalid file: %v", err)
		return result
	}

	if err := engine.ValidateTrackConfig(config); err != nil {
		result.fail("%v", err)
		return result
	}

	state, err := engine.InitSimStateFromConfig(config)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	width := 0
	for _, row := range state.Track {
		width = max(width, len(row))
	}

	checkRun(config, &result)
	if !result.Valid {
		return result
	}

	pieces := engine.CountPieces(state.Track)
	result.note("✓ Name: %s", config.Name)
	result.note("✓ Track: %dx%d", width, len(state.Track))
	result.note("✓ Carts: %d", len(state.Carts))
	result.note("✓ Intersections: %d", pieces[engine.Intersection])
	result.note("✓ Crash mode: %s", state.CrashMode)
	return result
}

// checkRun plays the track out with its own crash mode and tick limit.
func checkRun(config *engine.TrackConfig, result *ValidationResult) {
	sim, err := engine.NewEngine(config)
	if err != nil {
		result.fail("%v", err)
		return
	}

	maxTicks := config.MaxTicks
	if maxTicks == 0 {
		maxTicks = engine.DefaultMaxTicks
	}

	run, err := sim.RunUntilLastCart(maxTicks)
	switch {
	case errors.Is(err, engine.ErrDerailed):
		result.fail("Cart left the rails on tick %d: %v", sim.GetTick(), err)
		return
	case errors.Is(err, engine.ErrMaxTicks):
		result.fail("No result within %d ticks", maxTicks)
		return
	case err != nil:
		result.fail("Simulation failed: %v", err)
		return
	}

	state := sim.GetState()
	if state.FirstCrash != nil {
		result.note("✓ First crash: %s", engine.FormatPosition(*state.FirstCrash))
	}
	if state.LastCart != nil {
		result.note("✓ Last cart: %s after %d ticks", engine.FormatPosition(*state.LastCart), run.TicksRun)
	} else {
		result.note("✓ Stopped: %s after %d ticks", run.StopCode, run.TicksRun)
	}
}

// findTracks lists the track files in dir in name order.
func findTracks(dir string) ([]string, error) {
	var files []string
	for _, pattern := range trackPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// validateDir prints a report for every track in dir and reports whether all
// of them are valid.
func validateDir(w io.Writer, dir string) (bool, error) {
	files, err := findTracks(dir)
	if err != nil {
		return false, fmt.Errorf("error finding track files: %w", err)
	}
	if len(files) == 0 {
		return false, fmt.Errorf("no track files in %s", dir)
	}

	allValid := true
	for _, file := range files {
		result := validateTrack(file)

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All tracks are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some tracks have errors")
	}
	return allValid, nil
}

func main() {
	dir := "../tracks"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	ok, err := validateDir(os.Stdout, dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}
