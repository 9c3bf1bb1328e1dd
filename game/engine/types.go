package engine

import "errors"

// Piece is a single character of track
type Piece rune

const (
	Vertical     Piece = '|'
	Horizontal   Piece = '-'
	CurveSlash   Piece = '/'
	CurveBack    Piece = '\\'
	Intersection Piece = '+'
	Empty        Piece = ' '

	// Limits
	MaxTrackWidth   = 1000
	MaxTrackHeight  = 1000
	MaxTicksLimit   = 1000000
	DefaultMaxTicks = 100000
	MaxTicksPerCall = 10000
	MaxTickHistory  = 1000

	// Crash modes
	CrashModeRemove = "remove"
	CrashModeStop   = "stop"
)

var (
	ErrInvalidTrack       = errors.New("invalid track")
	ErrDerailed           = errors.New("cart derailed")
	ErrSimulationFinished = errors.New("simulation finished")
	ErrMaxTicks           = errors.New("tick limit reached")
)

// Direction is a heading, ordered clockwise starting at Up
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// cartSymbols maps cart markers to headings
var cartSymbols = map[rune]Direction{
	'^': Up,
	'>': Right,
	'v': Down,
	'<': Left,
}

// Delta returns the coordinate change of one step; y grows downwards.
func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Right:
		return 1, 0
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	}
	return 0, 0
}

// Clockwise returns the heading after a right turn
func (d Direction) Clockwise() Direction {
	return (d + 1) % 4
}

// CounterClockwise returns the heading after a left turn
func (d Direction) CounterClockwise() Direction {
	return (d + 3) % 4
}

// Symbol returns the map character for a cart with this heading
func (d Direction) Symbol() rune {
	switch d {
	case Up:
		return '^'
	case Right:
		return '>'
	case Down:
		return 'v'
	case Left:
		return '<'
	}
	return '?'
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return "unknown"
}

// TurnChoice is what a cart does at the next intersection
type TurnChoice int

const (
	TurnLeft TurnChoice = iota
	GoStraight
	TurnRight
)

// Next returns the following choice in the left, straight, right cycle
func (t TurnChoice) Next() TurnChoice {
	return (t + 1) % 3
}

// Apply turns d according to the choice
func (t TurnChoice) Apply(d Direction) Direction {
	switch t {
	case TurnLeft:
		return d.CounterClockwise()
	case TurnRight:
		return d.Clockwise()
	}
	return d
}

func (t TurnChoice) String() string {
	switch t {
	case TurnLeft:
		return "left"
	case GoStraight:
		return "straight"
	case TurnRight:
		return "right"
	}
	return "unknown"
}

// Position represents x,y coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cart is a single vehicle on the track
type Cart struct {
	ID        string     `json:"id"`
	Pos       Position   `json:"pos"`
	Dir       Direction  `json:"dir"`
	NextTurn  TurnChoice `json:"next_turn"`
	Crashed   bool       `json:"crashed,omitempty"`
	CrashTick int        `json:"crash_tick,omitempty"`
}

// Crash records a collision between carts
type Crash struct {
	Tick    int      `json:"tick"`
	Pos     Position `json:"pos"`
	CartIDs []string `json:"cart_ids"`
}

// TrackMessages are the texts shown on simulation events
type TrackMessages struct {
	Welcome    string `json:"welcome" yaml:"welcome"`
	Crash      string `json:"crash" yaml:"crash"`
	LastCart   string `json:"last_cart" yaml:"last_cart"`
	AllCrashed string `json:"all_crashed" yaml:"all_crashed"`
	Derailed   string `json:"derailed" yaml:"derailed"`
	Running    string `json:"running" yaml:"running"`
}

// TrackConfig represents a track definition loaded from disk
type TrackConfig struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Layout      []string          `json:"layout" yaml:"layout"`
	CrashMode   string            `json:"crash_mode,omitempty" yaml:"crash_mode,omitempty"`
	MaxTicks    int               `json:"max_ticks,omitempty" yaml:"max_ticks,omitempty"`
	Legend      map[string]string `json:"legend,omitempty" yaml:"legend,omitempty"`
	Messages    TrackMessages     `json:"messages" yaml:"messages"`
}

// SimState represents the complete simulation state
type SimState struct {
	Track      []string    `json:"track"`
	Carts      []Cart      `json:"carts"`
	Tick       int         `json:"tick"`
	Crashes    []Crash     `json:"crashes"`
	FirstCrash *Position   `json:"first_crash,omitempty"`
	LastCart   *Position   `json:"last_cart,omitempty"`
	Finished   bool        `json:"finished"`
	Derailed   bool        `json:"derailed,omitempty"`
	Message    string      `json:"message"`
	ConfigName string      `json:"config_name"`
	CrashMode  string      `json:"crash_mode"`
	History    []TickEntry `json:"tick_history"`
	TotalTicks int         `json:"total_ticks"`

	// CurrentTicks counts ticks since the last reset while TotalTicks and
	// History stay cumulative.
	CurrentTicks int `json:"current_ticks"`

	// Computed helper views
	Rendered       []string `json:"rendered,omitempty"`
	CartsRemaining int      `json:"carts_remaining"`
}

// Clone returns a deep copy that shares nothing with s
func (s *SimState) Clone() *SimState {
	if s == nil {
		return nil
	}
	c := *s
	c.Track = append([]string(nil), s.Track...)
	c.Carts = append([]Cart(nil), s.Carts...)
	c.Crashes = cloneCrashes(s.Crashes)
	c.FirstCrash = clonePosition(s.FirstCrash)
	c.LastCart = clonePosition(s.LastCart)
	c.Rendered = append([]string(nil), s.Rendered...)
	if s.History != nil {
		c.History = make([]TickEntry, len(s.History))
		for i, entry := range s.History {
			entry.Crashes = cloneCrashes(entry.Crashes)
			c.History[i] = entry
		}
	}
	return &c
}

func cloneCrashes(crashes []Crash) []Crash {
	if crashes == nil {
		return nil
	}
	out := make([]Crash, len(crashes))
	for i, crash := range crashes {
		crash.CartIDs = append([]string(nil), crash.CartIDs...)
		out[i] = crash
	}
	return out
}

func clonePosition(p *Position) *Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// TickEntry summarizes one tick in the simulation history
type TickEntry struct {
	Tick           int     `json:"tick"`
	CartsMoved     int     `json:"carts_moved"`
	Crashes        []Crash `json:"crashes,omitempty"`
	CartsRemaining int     `json:"carts_remaining"`
	Timestamp      int64   `json:"timestamp"`
	TickNumber     int     `json:"tick_number"`
}

// TickReport is what a single call to Tick produced
type TickReport struct {
	Tick           int       `json:"tick"`
	CartsMoved     int       `json:"carts_moved"`
	Crashes        []Crash   `json:"crashes,omitempty"`
	CartsRemaining int       `json:"carts_remaining"`
	Finished       bool      `json:"finished"`
	LastCart       *Position `json:"last_cart,omitempty"`
}

// Solution answers both questions about a track
type Solution struct {
	FirstCrash     *Position `json:"first_crash,omitempty"`
	FirstCrashTick int       `json:"first_crash_tick"`
	LastCart       *Position `json:"last_cart,omitempty"`
	LastCartTick   int       `json:"last_cart_tick"`
	Carts          int       `json:"carts"`
	Crashes        int       `json:"crashes"`
}
