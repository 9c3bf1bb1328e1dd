// Command analyze prints quick, human-readable facts about the track files in
// the project's tracks directory: dimensions, carts and their headings, rail
// piece counts, carts that start facing each other on a straight, and where
// the first crash and the last cart end up.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/minecart/game/engine"
)

// TrackAnalysis is what analyze learns about one track.
type TrackAnalysis struct {
	Name      string
	Width     int
	Height    int
	CrashMode string
	Carts     []engine.Cart
	Pieces    map[engine.Piece]int
	HeadOn    []string
	Solution  *engine.Solution
	SolveErr  error
}

var pieceOrder = []engine.Piece{
	engine.Vertical,
	engine.Horizontal,
	engine.CurveSlash,
	engine.CurveBack,
	engine.Intersection,
}

func main() {
	dir := "tracks"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml", "*.txt"} {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		files = append(files, matches...)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		if err := analyzeFile(os.Stdout, file); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func analyzeFile(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	config, err := engine.DecodeTrackConfig(path, data)
	if err != nil {
		return err
	}

	analysis, err := analyzeTrack(config)
	if err != nil {
		return err
	}
	printAnalysis(w, analysis)
	return nil
}

func analyzeTrack(config *engine.TrackConfig) (*TrackAnalysis, error) {
	track, carts, err := engine.ParseLayout(config.Layout)
	if err != nil {
		return nil, err
	}

	crashMode := config.CrashMode
	if crashMode == "" {
		crashMode = engine.CrashModeRemove
	}

	analysis := &TrackAnalysis{
		Name:      config.Name,
		Height:    len(track),
		CrashMode: crashMode,
		Carts:     carts,
		Pieces:    engine.CountPieces(track),
		HeadOn:    headOnPairs(track, carts),
	}
	if len(track) > 0 {
		analysis.Width = len(track[0])
	}

	analysis.Solution, analysis.SolveErr = engine.Solve(config.Layout, config.MaxTicks)
	return analysis, nil
}

// headOnPairs finds carts facing each other with nothing but straight rail
// between them. Those two collide before anything else can happen to them.
func headOnPairs(track []string, carts []engine.Cart) []string {
	byPos := make(map[engine.Position]engine.Cart, len(carts))
	for _, c := range carts {
		byPos[c.Pos] = c
	}

	var pairs []string
	for _, c := range carts {
		switch c.Dir {
		case engine.Right:
			for x := c.Pos.X + 1; x < len(track[c.Pos.Y]); x++ {
				if other, ok := byPos[engine.Position{X: x, Y: c.Pos.Y}]; ok {
					if other.Dir == engine.Left {
						pairs = append(pairs, fmt.Sprintf("%s and %s on row %d", c.ID, other.ID, c.Pos.Y))
					}
					break
				}
				if engine.Piece(track[c.Pos.Y][x]) != engine.Horizontal {
					break
				}
			}
		case engine.Down:
			for y := c.Pos.Y + 1; y < len(track); y++ {
				if other, ok := byPos[engine.Position{X: c.Pos.X, Y: y}]; ok {
					if other.Dir == engine.Up {
						pairs = append(pairs, fmt.Sprintf("%s and %s on column %d", c.ID, other.ID, c.Pos.X))
					}
					break
				}
				if engine.Piece(track[y][c.Pos.X]) != engine.Vertical {
					break
				}
			}
		}
	}
	return pairs
}

func printAnalysis(w io.Writer, a *TrackAnalysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Track: %d x %d\n", a.Width, a.Height)
	fmt.Fprintf(w, "Crash mode: %s\n", a.CrashMode)

	fmt.Fprintf(w, "Carts: %d\n", len(a.Carts))
	for _, c := range a.Carts {
		fmt.Fprintf(w, "  %s at %s heading %s\n", c.ID, engine.FormatPosition(c.Pos), c.Dir)
	}

	counts := make([]string, 0, len(pieceOrder))
	for _, p := range pieceOrder {
		counts = append(counts, fmt.Sprintf("%c %d", p, a.Pieces[p]))
	}
	fmt.Fprintf(w, "Pieces: %s\n", strings.Join(counts, ", "))

	if len(a.Carts) < 2 {
		fmt.Fprintf(w, "⚠️  WARNING: only %d cart(s), nothing can crash\n", len(a.Carts))
	}
	for _, pair := range a.HeadOn {
		fmt.Fprintf(w, "⚠️  Head-on: %s\n", pair)
	}

	if a.SolveErr != nil {
		fmt.Fprintf(w, "❌ Solve failed: %v\n", a.SolveErr)
		return
	}
	if a.Solution.FirstCrash != nil {
		fmt.Fprintf(w, "First crash: %s on tick %d\n", engine.FormatPosition(*a.Solution.FirstCrash), a.Solution.FirstCrashTick)
	}
	if a.Solution.LastCart != nil {
		fmt.Fprintf(w, "✅ Last cart: %s on tick %d\n", engine.FormatPosition(*a.Solution.LastCart), a.Solution.LastCartTick)
	} else {
		fmt.Fprintf(w, "No cart survives (%d crashes)\n", a.Solution.Crashes)
	}
}
