package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/minecart/game/engine"
)

var yardLayout = []string{
	`/>-<\  `,
	`|   |  `,
	`| /<+-\`,
	`| | | v`,
	`\>+</ |`,
	`  |   ^`,
	`  \<->/`,
}

var loopsLayout = []string{
	`/->-\        `,
	`|   |  /----\`,
	`| /-+--+-\  |`,
	`| | |  | v  |`,
	`\-+-/  \-+--/`,
	`  \------/   `,
}

func TestAnalyzeTrack(t *testing.T) {
	analysis, err := analyzeTrack(&engine.TrackConfig{Name: "Yard", Layout: yardLayout})
	if err != nil {
		t.Fatalf("analyzeTrack failed: %v", err)
	}

	if analysis.Width != 7 || analysis.Height != 7 {
		t.Errorf("Expected 7 x 7, got %d x %d", analysis.Width, analysis.Height)
	}
	if analysis.CrashMode != engine.CrashModeRemove {
		t.Errorf("Expected default crash mode remove, got %s", analysis.CrashMode)
	}
	if len(analysis.Carts) != 9 {
		t.Errorf("Expected 9 carts, got %d", len(analysis.Carts))
	}
	if got := analysis.Pieces[engine.Intersection]; got != 2 {
		t.Errorf("Expected 2 intersections, got %d", got)
	}

	if analysis.SolveErr != nil {
		t.Fatalf("Unexpected solve error: %v", analysis.SolveErr)
	}
	if analysis.Solution.FirstCrash == nil || *analysis.Solution.FirstCrash != (engine.Position{X: 2, Y: 0}) {
		t.Errorf("Expected first crash at 2,0, got %v", analysis.Solution.FirstCrash)
	}
	if analysis.Solution.LastCart == nil || *analysis.Solution.LastCart != (engine.Position{X: 6, Y: 4}) {
		t.Errorf("Expected last cart at 6,4, got %v", analysis.Solution.LastCart)
	}
}

func TestAnalyzeTrack_InvalidLayout(t *testing.T) {
	_, err := analyzeTrack(&engine.TrackConfig{Name: "bad", Layout: []string{"/-#-\\"}})
	if err == nil {
		t.Fatal("Expected error for an invalid character")
	}
}

func TestHeadOnPairs(t *testing.T) {
	tests := []struct {
		name     string
		layout   []string
		expected []string
	}{
		{
			name:     "switchyard",
			layout:   yardLayout,
			expected: []string{"cart_0 and cart_1 on row 0", "cart_3 and cart_6 on column 6"},
		},
		{
			name:     "two loops",
			layout:   loopsLayout,
			expected: nil,
		},
		{
			name:     "intersection in between",
			layout:   []string{`/>+<\`, `| | |`, `\-+-/`},
			expected: nil,
		},
		{
			name:     "facing away",
			layout:   []string{`/<->\`, `|   |`, `\---/`},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, carts, err := engine.ParseLayout(tt.layout)
			if err != nil {
				t.Fatalf("ParseLayout failed: %v", err)
			}

			got := headOnPairs(track, carts)
			if strings.Join(got, "|") != strings.Join(tt.expected, "|") {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestPrintAnalysis(t *testing.T) {
	analysis, err := analyzeTrack(&engine.TrackConfig{Name: "Loops", Layout: loopsLayout, CrashMode: engine.CrashModeStop})
	if err != nil {
		t.Fatalf("analyzeTrack failed: %v", err)
	}

	var out bytes.Buffer
	printAnalysis(&out, analysis)

	for _, want := range []string{
		"Name: Loops",
		"Track: 13 x 6",
		"Crash mode: stop",
		"Carts: 2",
		"cart_0 at 2,0 heading right",
		"cart_1 at 9,3 heading down",
		"+ 4",
		"First crash: 7,3 on tick 14",
		"No cart survives (1 crashes)",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "Head-on") {
		t.Errorf("Did not expect head-on warning:\n%s", out.String())
	}
}

func TestPrintAnalysis_SingleCart(t *testing.T) {
	analysis, err := analyzeTrack(&engine.TrackConfig{Name: "Solo", Layout: []string{`/->\`, `\--/`}})
	if err != nil {
		t.Fatalf("analyzeTrack failed: %v", err)
	}

	var out bytes.Buffer
	printAnalysis(&out, analysis)
	if !strings.Contains(out.String(), "only 1 cart(s)") {
		t.Errorf("Expected single cart warning:\n%s", out.String())
	}
}

func TestAnalyzeFile(t *testing.T) {
	t.Run("bundled track", func(t *testing.T) {
		var out bytes.Buffer
		if err := analyzeFile(&out, filepath.Join("..", "..", "tracks", "classic.json")); err != nil {
			t.Fatalf("analyzeFile failed: %v", err)
		}
		if !strings.Contains(out.String(), "✅ Last cart: 6,4 on tick 3") {
			t.Errorf("Unexpected output:\n%s", out.String())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if err := analyzeFile(&bytes.Buffer{}, filepath.Join(t.TempDir(), "none.json")); err == nil {
			t.Error("Expected error for a missing file")
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "track.toml")
		if err := os.WriteFile(path, []byte("name = 'x'"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := analyzeFile(&bytes.Buffer{}, path); err == nil {
			t.Error("Expected error for an unsupported extension")
		}
	})
}
