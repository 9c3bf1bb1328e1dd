package engine

import (
	"fmt"
	"strings"
)

// CrashMarker is drawn where carts collided
const CrashMarker = 'X'

// Render draws crash sites and live carts over the track
func Render(state *SimState) []string {
	if state == nil {
		return nil
	}

	rows := make([][]byte, len(state.Track))
	for y, row := range state.Track {
		rows[y] = []byte(row)
	}

	put := func(p Position, c byte) {
		if p.Y >= 0 && p.Y < len(rows) && p.X >= 0 && p.X < len(rows[p.Y]) {
			rows[p.Y][p.X] = c
		}
	}
	for _, crash := range state.Crashes {
		put(crash.Pos, CrashMarker)
	}
	for _, cart := range state.Carts {
		if !cart.Crashed {
			put(cart.Pos, byte(cart.Dir.Symbol()))
		}
	}

	out := make([]string, len(rows))
	for y, row := range rows {
		out[y] = strings.TrimRight(string(row), " ")
	}
	return out
}

// FormatPosition renders a position as X,Y
func FormatPosition(p Position) string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// CountPieces counts every rail piece on the track
func CountPieces(track []string) map[Piece]int {
	counts := make(map[Piece]int)
	for _, row := range track {
		for i := 0; i < len(row); i++ {
			if p := Piece(row[i]); p != Empty {
				counts[p]++
			}
		}
	}
	return counts
}

// FindCarts returns the positions of the cart markers in a raw layout
func FindCarts(layout []string) []Position {
	var positions []Position
	for y, row := range layout {
		for x, c := range row {
			if _, ok := cartSymbols[c]; ok {
				positions = append(positions, Position{X: x, Y: y})
			}
		}
	}
	return positions
}

// StopCode classifies why a simulation is in its current state
func StopCode(state *SimState) string {
	switch {
	case state.Derailed:
		return StopDerailed
	case state.LastCart != nil:
		return StopLastCart
	case state.Finished && state.CrashMode == CrashModeStop && state.FirstCrash != nil:
		return StopFirstCrash
	case state.Finished && state.CartsRemaining == 0:
		return StopAllCrashed
	case state.FirstCrash != nil:
		return StopFirstCrash
	}
	return StopRequested
}

// Solve runs a layout to completion with crashed carts removed and reports
// where the first crash happened and where the last cart ended up.
func Solve(layout []string, maxTicks int) (*Solution, error) {
	state, err := InitSimStateFromConfig(&TrackConfig{
		Name:        "solve",
		Description: "ad hoc layout",
		Layout:      layout,
		CrashMode:   CrashModeRemove,
	})
	if err != nil {
		return nil, err
	}
	if len(state.Carts) == 0 {
		return nil, fmt.Errorf("%w: no carts on the track", ErrInvalidTrack)
	}
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}

	for !state.Finished {
		if state.Tick >= maxTicks {
			return nil, fmt.Errorf("%w: %d ticks without a single survivor", ErrMaxTicks, maxTicks)
		}
		if _, err := state.Advance(TrackMessages{}); err != nil {
			return nil, err
		}
	}

	solution := &Solution{
		FirstCrash: state.FirstCrash,
		LastCart:   state.LastCart,
		Carts:      len(state.Carts),
		Crashes:    len(state.Crashes),
	}
	if len(state.Crashes) > 0 {
		solution.FirstCrashTick = state.Crashes[0].Tick
	}
	if state.LastCart != nil {
		solution.LastCartTick = state.Tick
	}
	return solution, nil
}
