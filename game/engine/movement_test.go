package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, mode string, layout ...string) *SimState {
	t.Helper()
	state, err := InitSimStateFromConfig(&TrackConfig{
		Name:        "movement test",
		Description: "hand-built layout",
		Layout:      layout,
		CrashMode:   mode,
	})
	require.NoError(t, err)
	return state
}

func TestMoveCartFollowsLoop(t *testing.T) {
	state := newTestState(t, CrashModeRemove,
		`/--\`,
		`|  |`,
		`\--/`,
	)
	cart := &Cart{ID: "cart_0", Pos: Position{X: 1, Y: 0}, Dir: Left}

	steps := []struct {
		pos Position
		dir Direction
	}{
		{Position{0, 0}, Down},
		{Position{0, 1}, Down},
		{Position{0, 2}, Right},
		{Position{1, 2}, Right},
		{Position{2, 2}, Right},
		{Position{3, 2}, Up},
		{Position{3, 1}, Up},
		{Position{3, 0}, Left},
		{Position{2, 0}, Left},
		{Position{1, 0}, Left},
	}

	for i, step := range steps {
		require.NoError(t, state.moveCart(cart), "step %d", i)
		if cart.Pos != step.pos || cart.Dir != step.dir {
			t.Fatalf("step %d: got %v heading %v, want %v heading %v", i, cart.Pos, cart.Dir, step.pos, step.dir)
		}
	}
}

func TestMoveCartIntersectionCycle(t *testing.T) {
	state := newTestState(t, CrashModeRemove,
		`  |  `,
		`--+--`,
		`  |  `,
	)

	tests := []struct {
		next    TurnChoice
		wantDir Direction
	}{
		{TurnLeft, Up},
		{GoStraight, Right},
		{TurnRight, Down},
	}

	for _, tt := range tests {
		t.Run(tt.next.String(), func(t *testing.T) {
			cart := &Cart{ID: "cart_0", Pos: Position{X: 1, Y: 1}, Dir: Right, NextTurn: tt.next}
			require.NoError(t, state.moveCart(cart))
			assert.Equal(t, Position{X: 2, Y: 1}, cart.Pos)
			assert.Equal(t, tt.wantDir, cart.Dir)
			assert.Equal(t, tt.next.Next(), cart.NextTurn)
		})
	}
}

func TestMoveCartDerails(t *testing.T) {
	state := newTestState(t, CrashModeRemove,
		`  |  `,
		`--+--`,
		`  |  `,
		`-|   `,
	)

	tests := []struct {
		name string
		cart Cart
	}{
		{"off the map", Cart{ID: "a", Pos: Position{X: 4, Y: 1}, Dir: Right}},
		{"onto empty ground", Cart{ID: "b", Pos: Position{X: 1, Y: 1}, Dir: Up}},
		{"onto a crossing rail", Cart{ID: "c", Pos: Position{X: 0, Y: 3}, Dir: Right}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := tt.cart
			err := state.moveCart(&cart)
			if !errors.Is(err, ErrDerailed) {
				t.Fatalf("expected ErrDerailed, got %v", err)
			}
			assert.Equal(t, tt.cart.Pos, cart.Pos, "derailed cart should not move")
		})
	}
}

func TestAdvanceHeadOnCrash(t *testing.T) {
	state := newTestState(t, CrashModeRemove, `->-<-`)

	report, err := state.Advance(TrackMessages{})
	require.NoError(t, err)

	want := []Crash{{Tick: 1, Pos: Position{X: 2, Y: 0}, CartIDs: []string{"cart_0", "cart_1"}}}
	if diff := cmp.Diff(want, report.Crashes); diff != "" {
		t.Errorf("crashes mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, report.Finished)
	assert.Equal(t, 0, report.CartsRemaining)
	require.NotNil(t, state.FirstCrash)
	assert.Equal(t, Position{X: 2, Y: 0}, *state.FirstCrash)
	assert.Nil(t, state.LastCart)
	assert.Equal(t, "Every cart crashed", state.Message)
	assert.Equal(t, StopAllCrashed, StopCode(state))
}

func TestAdvanceReadingOrder(t *testing.T) {
	// The left cart moves first and runs into the right one before it moves.
	state := newTestState(t, CrashModeRemove, `--><--`)

	report, err := state.Advance(TrackMessages{})
	require.NoError(t, err)
	require.Len(t, report.Crashes, 1)
	assert.Equal(t, Position{X: 3, Y: 0}, report.Crashes[0].Pos)
	assert.Equal(t, []string{"cart_1", "cart_0"}, report.Crashes[0].CartIDs)
	assert.Equal(t, 1, report.CartsMoved)
}

func TestAdvanceCrashModes(t *testing.T) {
	layout := `->-<--->--`

	t.Run("remove keeps the survivor moving", func(t *testing.T) {
		state := newTestState(t, CrashModeRemove, layout)
		report, err := state.Advance(TrackMessages{})
		require.NoError(t, err)

		assert.Equal(t, 3, report.CartsMoved)
		assert.True(t, state.Finished)
		require.NotNil(t, state.LastCart)
		assert.Equal(t, Position{X: 8, Y: 0}, *state.LastCart)
		assert.Equal(t, "Last cart standing at 8,0", state.Message)
		assert.Equal(t, StopLastCart, StopCode(state))
	})

	t.Run("stop halts on the first collision", func(t *testing.T) {
		state := newTestState(t, CrashModeStop, layout)
		report, err := state.Advance(TrackMessages{})
		require.NoError(t, err)

		assert.Equal(t, 2, report.CartsMoved)
		assert.True(t, state.Finished)
		assert.Nil(t, state.LastCart)
		assert.Equal(t, Position{X: 7, Y: 0}, state.Carts[2].Pos, "third cart should not have moved")
		assert.False(t, state.Carts[2].Crashed)
		assert.Equal(t, "Crash at 2,0!", state.Message)
		assert.Equal(t, StopFirstCrash, StopCode(state))
	})
}

func TestAdvanceAfterFinish(t *testing.T) {
	state := newTestState(t, CrashModeRemove, `->-<-`)
	_, err := state.Advance(TrackMessages{})
	require.NoError(t, err)

	_, err = state.Advance(TrackMessages{})
	assert.ErrorIs(t, err, ErrSimulationFinished)
	assert.Equal(t, 1, state.Tick)
}

func TestAdvanceDerailmentFinishes(t *testing.T) {
	state := newTestState(t, CrashModeRemove, `-->`, `<--`)

	_, err := state.Advance(TrackMessages{Derailed: "off the rails"})
	require.ErrorIs(t, err, ErrDerailed)
	assert.True(t, state.Finished)
	assert.True(t, state.Derailed)
	assert.Contains(t, state.Message, "off the rails")
	assert.Equal(t, StopDerailed, StopCode(state))
}

func TestAddTickToHistoryBounded(t *testing.T) {
	state := newTestState(t, CrashModeRemove, `->-<-`)

	for i := 1; i <= MaxTickHistory+5; i++ {
		state.AddTickToHistory(TickReport{Tick: i})
	}

	assert.Len(t, state.History, MaxTickHistory)
	assert.Equal(t, MaxTickHistory+5, state.TotalTicks)
	assert.Equal(t, 6, state.History[0].Tick)
	assert.Equal(t, MaxTickHistory+5, state.History[len(state.History)-1].TickNumber)
}
