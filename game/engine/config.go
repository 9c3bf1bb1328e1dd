package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// horizontalLinks are pieces a horizontal rail may connect to
const horizontalLinks = "-+/\\"

// verticalLinks are pieces a vertical rail may connect to
const verticalLinks = "|+/\\"

// ParseLayout splits a track map into rails and carts. Cart markers are
// replaced by the straight piece underneath them and every row is padded
// with spaces to the widest row.
func ParseLayout(layout []string) ([]string, []Cart, error) {
	if len(layout) == 0 {
		return nil, nil, fmt.Errorf("%w: layout is empty", ErrInvalidTrack)
	}
	if len(layout) > MaxTrackHeight {
		return nil, nil, fmt.Errorf("%w: layout has %d rows, limit is %d", ErrInvalidTrack, len(layout), MaxTrackHeight)
	}

	width := 0
	for _, row := range layout {
		row = strings.TrimRight(row, "\r")
		if len(row) > width {
			width = len(row)
		}
	}
	if width > MaxTrackWidth {
		return nil, nil, fmt.Errorf("%w: layout is %d columns wide, limit is %d", ErrInvalidTrack, width, MaxTrackWidth)
	}

	track := make([]string, len(layout))
	var carts []Cart

	for y, row := range layout {
		row = strings.TrimRight(row, "\r")
		line := make([]byte, width)
		for x := 0; x < width; x++ {
			if x >= len(row) {
				line[x] = byte(Empty)
				continue
			}
			c := row[x]
			if dir, ok := cartSymbols[rune(c)]; ok {
				carts = append(carts, Cart{
					ID:       fmt.Sprintf("cart_%d", len(carts)),
					Pos:      Position{X: x, Y: y},
					Dir:      dir,
					NextTurn: TurnLeft,
				})
				if dir == Up || dir == Down {
					line[x] = byte(Vertical)
				} else {
					line[x] = byte(Horizontal)
				}
				continue
			}
			switch Piece(c) {
			case Vertical, Horizontal, CurveSlash, CurveBack, Intersection, Empty:
				line[x] = c
			default:
				return nil, nil, fmt.Errorf("%w: invalid character %q at %d,%d", ErrInvalidTrack, c, x, y)
			}
		}
		track[y] = string(line)
	}

	return track, carts, nil
}

// ValidateTrackConfig validates a track configuration for correctness and runnability
func ValidateTrackConfig(config *TrackConfig) error {
	err := validateTrackConfig(config)
	if err == nil || errors.Is(err, ErrInvalidTrack) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidTrack, err)
}

func validateTrackConfig(config *TrackConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	switch config.CrashMode {
	case "", CrashModeRemove, CrashModeStop:
	default:
		return fmt.Errorf("config validation: crash_mode must be %q or %q, got %q", CrashModeRemove, CrashModeStop, config.CrashMode)
	}

	if config.MaxTicks < 0 || config.MaxTicks > MaxTicksLimit {
		return fmt.Errorf("config validation: max_ticks must be between 0 and %d, got %d", MaxTicksLimit, config.MaxTicks)
	}

	track, carts, err := ParseLayout(config.Layout)
	if err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if len(carts) < 2 {
		return fmt.Errorf("config validation: layout must contain at least two carts, got %d", len(carts))
	}

	if err := CheckRails(track); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	// Format strings
	if config.Messages.Crash != "" && strings.Count(config.Messages.Crash, "%d") != 2 {
		return fmt.Errorf("config validation: messages.crash must contain two %%d for the crash position")
	}
	if config.Messages.LastCart != "" && strings.Count(config.Messages.LastCart, "%d") != 2 {
		return fmt.Errorf("config validation: messages.last_cart must contain two %%d for the cart position")
	}
	if config.Messages.Running != "" && strings.Count(config.Messages.Running, "%d") != 2 {
		return fmt.Errorf("config validation: messages.running must contain two %%d for tick and cart count")
	}

	return nil
}

// CheckRails reports the first piece whose neighbours do not continue the rail
func CheckRails(track []string) error {
	at := func(x, y int) byte {
		if y < 0 || y >= len(track) || x < 0 || x >= len(track[y]) {
			return byte(Empty)
		}
		return track[y][x]
	}
	links := func(c byte, set string) bool {
		return strings.IndexByte(set, c) >= 0
	}

	for y, row := range track {
		for x := 0; x < len(row); x++ {
			up := links(at(x, y-1), verticalLinks)
			down := links(at(x, y+1), verticalLinks)
			left := links(at(x-1, y), horizontalLinks)
			right := links(at(x+1, y), horizontalLinks)

			ok := true
			switch Piece(row[x]) {
			case Vertical:
				ok = up && down
			case Horizontal:
				ok = left && right
			case Intersection:
				ok = up && down && left && right
			case CurveSlash:
				ok = (right && down) || (left && up)
			case CurveBack:
				ok = (left && down) || (right && up)
			}
			if !ok {
				return fmt.Errorf("%w: broken rail %q at %d,%d", ErrInvalidTrack, row[x], x, y)
			}
		}
	}
	return nil
}

// ParseRawTrack turns a plain puzzle map into a track configuration
func ParseRawTrack(name string, data []byte) *TrackConfig {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	return &TrackConfig{
		Name:        name,
		Description: fmt.Sprintf("Raw track map %s", name),
		Layout:      lines,
		CrashMode:   CrashModeRemove,
	}
}

// LoadTrackConfig loads a track configuration from a .json, .yaml, .yml or .txt file
func LoadTrackConfig(filename string) (*TrackConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config, err := DecodeTrackConfig(filename, data)
	if err != nil {
		return nil, err
	}

	if err := ValidateTrackConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// DecodeTrackConfig decodes file contents according to the file extension
func DecodeTrackConfig(filename string, data []byte) (*TrackConfig, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var config TrackConfig
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filename), err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filename), err)
		}
	case ".txt", "":
		return ParseRawTrack(strings.TrimSuffix(filepath.Base(filename), ext), data), nil
	default:
		return nil, fmt.Errorf("unsupported track file extension %q", ext)
	}

	return &config, nil
}

// DefaultTrackID is the track id sessions on the built-in demo track are stored under
const DefaultTrackID = "demo"

// DefaultTrackConfig returns the built-in demo track
func DefaultTrackConfig() *TrackConfig {
	return &TrackConfig{
		Name:        DefaultTrackID,
		Description: "Two loops joined by intersections with two carts",
		Layout: []string{
			`/->-\        `,
			`|   |  /----\`,
			`| /-+--+-\  |`,
			`| | |  | v  |`,
			`\-+-/  \-+--/`,
			`  \------/   `,
		},
		CrashMode: CrashModeStop,
		MaxTicks:  1000,
	}
}

// withDefaultMessages fills in every message the config leaves empty
func withDefaultMessages(m TrackMessages) TrackMessages {
	if m.Welcome == "" {
		m.Welcome = "Carts are on the track. Tick to start the simulation."
	}
	if m.Crash == "" {
		m.Crash = "Crash at %d,%d!"
	}
	if m.LastCart == "" {
		m.LastCart = "Last cart standing at %d,%d"
	}
	if m.AllCrashed == "" {
		m.AllCrashed = "Every cart crashed"
	}
	if m.Derailed == "" {
		m.Derailed = "A cart left the rails"
	}
	if m.Running == "" {
		m.Running = "Tick %d: %d carts running"
	}
	return m
}

// InitSimStateFromConfig creates a new simulation state using the provided configuration
func InitSimStateFromConfig(config *TrackConfig) (*SimState, error) {
	if config == nil {
		config = DefaultTrackConfig()
	}

	track, carts, err := ParseLayout(config.Layout)
	if err != nil {
		return nil, err
	}

	crashMode := config.CrashMode
	if crashMode == "" {
		crashMode = CrashModeRemove
	}

	state := &SimState{
		Track:        track,
		Carts:        carts,
		Crashes:      []Crash{},
		Message:      withDefaultMessages(config.Messages).Welcome,
		ConfigName:   config.Name,
		CrashMode:    crashMode,
		History:      []TickEntry{},
		CurrentTicks: 0,
	}
	state.CartsRemaining = len(state.LiveCarts())
	return state, nil
}
