package engine

import "fmt"

// Engine provides the main interface for simulation operations
type Engine interface {
	// Simulation state management
	GetState() *SimState
	SetState(state *SimState) error
	Reset() (*SimState, error)
	IsFinished() bool
	GetTick() int
	GetCarts() []Cart
	LiveCarts() []Cart

	// Ticking
	Tick() (TickReport, error)
	TickN(n int) ([]TickReport, error)
	RunUntilFirstCrash(maxTicks int) (RunReport, error)
	RunUntilLastCart(maxTicks int) (RunReport, error)

	// Configuration
	GetConfig() *TrackConfig
	SetConfig(config *TrackConfig) error

	// History
	GetTickHistory() []TickEntry
	GetLastTick() *TickEntry

	// Views
	Render() []string
}

// RunReport summarizes a run of several ticks
type RunReport struct {
	TicksRun int     `json:"ticks_run"`
	Crashes  []Crash `json:"crashes,omitempty"`
	StopCode string  `json:"stop_code"`
}

// Stop codes reported by runs
const (
	StopFirstCrash = "first_crash"
	StopLastCart   = "last_cart"
	StopAllCrashed = "all_crashed"
	StopDerailed   = "derailed"
	StopMaxTicks   = "max_ticks"
	StopFinished   = "finished"
	StopRequested  = "completed"
)

// SimEngine implements the Engine interface
type SimEngine struct {
	state  *SimState
	config *TrackConfig
}

// NewEngine creates a new simulation engine with the provided configuration
func NewEngine(config *TrackConfig) (*SimEngine, error) {
	if err := ValidateTrackConfig(config); err != nil {
		return nil, err
	}

	state, err := InitSimStateFromConfig(config)
	if err != nil {
		return nil, err
	}

	return &SimEngine{
		config: config,
		state:  state,
	}, nil
}

// NewEngineWithDefaults creates a new simulation engine on the built-in demo track
func NewEngineWithDefaults() *SimEngine {
	config := DefaultTrackConfig()
	state, err := InitSimStateFromConfig(config)
	if err != nil {
		panic(fmt.Sprintf("engine: default track is invalid: %v", err))
	}
	return &SimEngine{config: config, state: state}
}

// GetState returns the current simulation state
func (e *SimEngine) GetState() *SimState {
	e.state.Rendered = Render(e.state)
	return e.state
}

// Snapshot returns a copy of the current state that later ticks do not touch
func (e *SimEngine) Snapshot() *SimState {
	return e.GetState().Clone()
}

// SetState sets the simulation state (used for persistence loading)
func (e *SimEngine) SetState(state *SimState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if len(state.Track) == 0 {
		return fmt.Errorf("state has no track")
	}
	e.state = state
	return nil
}

// Reset puts every cart back where the track file placed it
func (e *SimEngine) Reset() (*SimState, error) {
	// Preserve cumulative history and totals across resets
	prevHistory := e.state.History
	prevTotal := e.state.TotalTicks

	state, err := InitSimStateFromConfig(e.config)
	if err != nil {
		return nil, err
	}

	state.History = prevHistory
	state.TotalTicks = prevTotal
	state.CurrentTicks = 0
	e.state = state

	return e.state, nil
}

// IsFinished returns whether the simulation has ended
func (e *SimEngine) IsFinished() bool {
	return e.state.Finished
}

// GetTick returns the number of ticks since the last reset
func (e *SimEngine) GetTick() int {
	return e.state.Tick
}

// GetCarts returns every cart, crashed ones included
func (e *SimEngine) GetCarts() []Cart {
	return e.state.Carts
}

// LiveCarts returns the carts still on the track
func (e *SimEngine) LiveCarts() []Cart {
	return e.state.LiveCarts()
}

// Tick advances the simulation by one tick
func (e *SimEngine) Tick() (TickReport, error) {
	messages := TrackMessages{}
	if e.config != nil {
		messages = e.config.Messages
	}

	report, err := e.state.Advance(messages)
	if err != nil && report.Tick == 0 {
		return report, err
	}

	e.state.AddTickToHistory(report)
	return report, err
}

// TickN advances up to n ticks, stopping early when the simulation finishes
func (e *SimEngine) TickN(n int) ([]TickReport, error) {
	reports := make([]TickReport, 0, n)

	for i := 0; i < n; i++ {
		if e.IsFinished() {
			break
		}
		report, err := e.Tick()
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}

	return reports, nil
}

// RunUntilFirstCrash ticks until the first collision happens
func (e *SimEngine) RunUntilFirstCrash(maxTicks int) (RunReport, error) {
	return e.runUntil(func(s *SimState) bool { return s.FirstCrash != nil }, maxTicks)
}

// RunUntilLastCart ticks until at most one cart is left
func (e *SimEngine) RunUntilLastCart(maxTicks int) (RunReport, error) {
	return e.runUntil(func(s *SimState) bool { return s.Finished }, maxTicks)
}

func (e *SimEngine) runUntil(done func(*SimState) bool, maxTicks int) (RunReport, error) {
	if maxTicks <= 0 {
		maxTicks = e.maxTicks()
	}

	run := RunReport{}
	for !done(e.state) && !e.state.Finished {
		if run.TicksRun >= maxTicks {
			run.StopCode = StopMaxTicks
			return run, fmt.Errorf("%w: %d ticks without reaching the goal", ErrMaxTicks, maxTicks)
		}

		report, err := e.Tick()
		run.TicksRun++
		run.Crashes = append(run.Crashes, report.Crashes...)
		if err != nil {
			run.StopCode = StopDerailed
			return run, err
		}
	}

	run.StopCode = StopCode(e.state)
	return run, nil
}

func (e *SimEngine) maxTicks() int {
	if e.config != nil && e.config.MaxTicks > 0 {
		return e.config.MaxTicks
	}
	return DefaultMaxTicks
}

// GetConfig returns the current track configuration
func (e *SimEngine) GetConfig() *TrackConfig {
	return e.config
}

// SetConfig sets a new track configuration and resets the simulation
func (e *SimEngine) SetConfig(config *TrackConfig) error {
	if err := ValidateTrackConfig(config); err != nil {
		return err
	}

	state, err := InitSimStateFromConfig(config)
	if err != nil {
		return err
	}

	e.config = config
	e.state = state
	return nil
}

// GetTickHistory returns the retained tick history
func (e *SimEngine) GetTickHistory() []TickEntry {
	return e.state.History
}

// GetLastTick returns the last tick recorded, or nil if none
func (e *SimEngine) GetLastTick() *TickEntry {
	if len(e.state.History) == 0 {
		return nil
	}
	return &e.state.History[len(e.state.History)-1]
}

// Render returns the track with carts and crash sites drawn on it
func (e *SimEngine) Render() []string {
	return Render(e.state)
}
