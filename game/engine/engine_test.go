package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopsLayout has two carts whose first crash is at 7,3 on tick 14.
var loopsLayout = []string{
	`/->-\        `,
	`|   |  /----\`,
	`| /-+--+-\  |`,
	`| | |  | v  |`,
	`\-+-/  \-+--/`,
	`  \------/   `,
}

// yardLayout has nine carts; the last one is left at 6,4 after tick 3.
var yardLayout = []string{
	`/>-<\  `,
	`|   |  `,
	`| /<+-\`,
	`| | | v`,
	`\>+</ |`,
	`  |   ^`,
	`  \<->/`,
}

func createTestConfig(mode string, layout []string) *TrackConfig {
	return &TrackConfig{
		Name:        "Engine Test Track",
		Description: "Configuration for engine tests",
		Layout:      layout,
		CrashMode:   mode,
		MaxTicks:    100,
		Messages: TrackMessages{
			Welcome:    "Welcome to the engine test!",
			Crash:      "Crash at %d,%d",
			LastCart:   "Survivor at %d,%d",
			AllCrashed: "Nobody left",
			Derailed:   "Derailed",
			Running:    "Tick %d with %d carts",
		},
	}
}

func TestNewEngine(t *testing.T) {
	config := createTestConfig(CrashModeStop, loopsLayout)
	sim, err := NewEngine(config)
	require.NoError(t, err)

	state := sim.GetState()
	assert.Equal(t, 0, sim.GetTick())
	assert.False(t, sim.IsFinished())
	assert.Len(t, sim.GetCarts(), 2)
	assert.Equal(t, "Welcome to the engine test!", state.Message)
	assert.Equal(t, "Engine Test Track", state.ConfigName)
	assert.Equal(t, CrashModeStop, state.CrashMode)
	assert.Equal(t, 2, state.CartsRemaining)
	assert.Equal(t, `/->-\`, state.Rendered[0])
	assert.Equal(t, `/---\        `, state.Track[0])
}

func TestNewEngineInvalidConfig(t *testing.T) {
	config := createTestConfig(CrashModeStop, []string{`->--`})
	_, err := NewEngine(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least two carts")
}

func TestNewEngineWithDefaults(t *testing.T) {
	sim := NewEngineWithDefaults()
	require.NotNil(t, sim)
	assert.Equal(t, "demo", sim.GetConfig().Name)
	assert.Len(t, sim.LiveCarts(), 2)
}

func TestEngineTick(t *testing.T) {
	sim, err := NewEngine(createTestConfig(CrashModeStop, loopsLayout))
	require.NoError(t, err)

	report, err := sim.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tick)
	assert.Equal(t, 2, report.CartsMoved)
	assert.Empty(t, report.Crashes)
	assert.Equal(t, "Tick 1 with 2 carts", sim.GetState().Message)

	last := sim.GetLastTick()
	require.NotNil(t, last)
	assert.Equal(t, 1, last.TickNumber)
	assert.Len(t, sim.GetTickHistory(), 1)

	// After one tick the top cart has moved right and the other one down.
	live := sim.LiveCarts()
	assert.Equal(t, Position{X: 3, Y: 0}, live[0].Pos)
	assert.Equal(t, Position{X: 9, Y: 4}, live[1].Pos)
}

func TestEngineTickN(t *testing.T) {
	sim, err := NewEngine(createTestConfig(CrashModeStop, loopsLayout))
	require.NoError(t, err)

	reports, err := sim.TickN(50)
	require.NoError(t, err)
	assert.Len(t, reports, 14, "should stop at the tick that crashed")
	assert.True(t, sim.IsFinished())

	more, err := sim.TickN(5)
	require.NoError(t, err)
	assert.Empty(t, more)
}

func TestRunUntilFirstCrash(t *testing.T) {
	t.Run("stop mode", func(t *testing.T) {
		sim, err := NewEngine(createTestConfig(CrashModeStop, loopsLayout))
		require.NoError(t, err)

		run, err := sim.RunUntilFirstCrash(0)
		require.NoError(t, err)
		assert.Equal(t, 14, run.TicksRun)
		assert.Equal(t, StopFirstCrash, run.StopCode)
		require.Len(t, run.Crashes, 1)
		assert.Equal(t, Position{X: 7, Y: 3}, run.Crashes[0].Pos)

		state := sim.GetState()
		require.NotNil(t, state.FirstCrash)
		assert.Equal(t, "7,3", FormatPosition(*state.FirstCrash))
		assert.Equal(t, "Crash at 7,3", state.Message)
		assert.Equal(t, []string{
			`/---\`,
			`|   |  /----\`,
			`| /-+--+-\  |`,
			`| | |  X |  |`,
			`\-+-/  \-+--/`,
			`  \------/`,
		}, sim.Render())
	})

	t.Run("remove mode stops at the crash tick", func(t *testing.T) {
		sim, err := NewEngine(createTestConfig(CrashModeRemove, yardLayout))
		require.NoError(t, err)

		run, err := sim.RunUntilFirstCrash(0)
		require.NoError(t, err)
		assert.Equal(t, 1, run.TicksRun)
		assert.Equal(t, StopFirstCrash, run.StopCode)
		assert.Len(t, run.Crashes, 3)
		assert.Equal(t, Position{X: 2, Y: 0}, *sim.GetState().FirstCrash)
		assert.False(t, sim.IsFinished())

		again, err := sim.RunUntilFirstCrash(0)
		require.NoError(t, err)
		assert.Equal(t, 0, again.TicksRun)
	})

	t.Run("tick limit", func(t *testing.T) {
		sim, err := NewEngine(createTestConfig(CrashModeStop, loopsLayout))
		require.NoError(t, err)

		run, err := sim.RunUntilFirstCrash(5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMaxTicks))
		assert.Equal(t, StopMaxTicks, run.StopCode)
		assert.Equal(t, 5, run.TicksRun)
		assert.False(t, sim.IsFinished())
	})
}

func TestRunUntilLastCart(t *testing.T) {
	sim, err := NewEngine(createTestConfig(CrashModeRemove, yardLayout))
	require.NoError(t, err)

	run, err := sim.RunUntilLastCart(0)
	require.NoError(t, err)
	assert.Equal(t, 3, run.TicksRun)
	assert.Equal(t, StopLastCart, run.StopCode)
	assert.Len(t, run.Crashes, 4)

	state := sim.GetState()
	assert.True(t, state.Finished)
	require.NotNil(t, state.LastCart)
	assert.Equal(t, Position{X: 6, Y: 4}, *state.LastCart)
	assert.Equal(t, "Survivor at 6,4", state.Message)
	assert.Equal(t, 1, state.CartsRemaining)
}

func TestEngineReset(t *testing.T) {
	sim, err := NewEngine(createTestConfig(CrashModeStop, loopsLayout))
	require.NoError(t, err)

	_, err = sim.TickN(3)
	require.NoError(t, err)

	state, err := sim.Reset()
	require.NoError(t, err)
	assert.Equal(t, 0, state.Tick)
	assert.Equal(t, 0, state.CurrentTicks)
	assert.Equal(t, 3, state.TotalTicks, "total ticks survive a reset")
	assert.Len(t, state.History, 3, "history survives a reset")
	assert.Equal(t, Position{X: 2, Y: 0}, sim.LiveCarts()[0].Pos)

	_, err = sim.Tick()
	require.NoError(t, err)
	assert.Equal(t, 4, sim.GetLastTick().TickNumber)
	assert.Equal(t, 1, sim.GetLastTick().Tick)
}

func TestEngineSetState(t *testing.T) {
	sim := NewEngineWithDefaults()

	assert.Error(t, sim.SetState(nil))
	assert.Error(t, sim.SetState(&SimState{}))

	other, err := InitSimStateFromConfig(createTestConfig(CrashModeRemove, yardLayout))
	require.NoError(t, err)
	require.NoError(t, sim.SetState(other))
	assert.Len(t, sim.GetCarts(), 9)
}

func TestEngineSetConfig(t *testing.T) {
	sim := NewEngineWithDefaults()

	require.NoError(t, sim.SetConfig(createTestConfig(CrashModeRemove, yardLayout)))
	assert.Equal(t, "Engine Test Track", sim.GetConfig().Name)
	assert.Len(t, sim.GetCarts(), 9)

	err := sim.SetConfig(&TrackConfig{Name: "broken"})
	assert.Error(t, err)
	assert.Equal(t, "Engine Test Track", sim.GetConfig().Name, "failed SetConfig keeps the old track")
}

func TestSolve(t *testing.T) {
	t.Run("two carts", func(t *testing.T) {
		solution, err := Solve(loopsLayout, 0)
		require.NoError(t, err)
		require.NotNil(t, solution.FirstCrash)
		assert.Equal(t, Position{X: 7, Y: 3}, *solution.FirstCrash)
		assert.Equal(t, 14, solution.FirstCrashTick)
		assert.Nil(t, solution.LastCart, "both carts crash, nobody is left")
		assert.Equal(t, 2, solution.Carts)
	})

	t.Run("nine carts", func(t *testing.T) {
		solution, err := Solve(yardLayout, 0)
		require.NoError(t, err)
		assert.Equal(t, Position{X: 2, Y: 0}, *solution.FirstCrash)
		assert.Equal(t, 1, solution.FirstCrashTick)
		require.NotNil(t, solution.LastCart)
		assert.Equal(t, Position{X: 6, Y: 4}, *solution.LastCart)
		assert.Equal(t, 3, solution.LastCartTick)
		assert.Equal(t, 4, solution.Crashes)
	})

	t.Run("no carts", func(t *testing.T) {
		_, err := Solve([]string{`/--\`, `\--/`}, 0)
		assert.ErrorIs(t, err, ErrInvalidTrack)
	})

	t.Run("tick limit", func(t *testing.T) {
		_, err := Solve(loopsLayout, 3)
		assert.ErrorIs(t, err, ErrMaxTicks)
	})
}

func TestSnapshotIsIndependent(t *testing.T) {
	sim, err := NewEngine(createTestConfig(CrashModeStop, loopsLayout))
	require.NoError(t, err)

	snap := sim.Snapshot()
	_, err = sim.RunUntilFirstCrash(0)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Tick)
	assert.Nil(t, snap.FirstCrash)
	assert.Equal(t, Position{X: 2, Y: 0}, snap.Carts[0].Pos)
	assert.Empty(t, snap.History)

	after := sim.Snapshot()
	after.Crashes[0].CartIDs[0] = "changed"
	assert.NotEqual(t, "changed", sim.GetState().Crashes[0].CartIDs[0])
}
