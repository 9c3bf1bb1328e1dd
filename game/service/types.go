package service

import (
	"time"

	"github.com/wricardo/mcp-training/minecart/game/engine"
)

// SessionInfo provides information about a simulation session
type SessionInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	SimState       *engine.SimState    `json:"sim_state"`
	TrackConfig    *engine.TrackConfig `json:"track_config"`
}

// TickResult contains the result of one or more ticks
type TickResult struct {
	// Summary
	TicksRun       int              `json:"ticks_run"`
	RequestedTicks int              `json:"requested_ticks"`
	Success        bool             `json:"success"`
	SimState       *engine.SimState `json:"sim_state"`
	Events         []SimEvent       `json:"events"`
	StopReasonCode string           `json:"stop_reason_code,omitempty"` // finished|first_crash|last_cart|all_crashed|derailed|max_ticks
	StoppedReason  string           `json:"stopped_reason,omitempty"`
	Truncated      bool             `json:"truncated,omitempty"`
	Limit          int              `json:"limit,omitempty"`

	// Start/end snapshot
	StartTick     int `json:"start_tick"`
	EndTick       int `json:"end_tick"`
	StartingCarts int `json:"starting_carts"`
	EndingCarts   int `json:"ending_carts"`

	// Per-tick compact trace (only for this call)
	Reports []engine.TickReport `json:"reports,omitempty"`

	Crashes  []engine.Crash   `json:"crashes,omitempty"`
	Finished bool             `json:"finished"`
	LastCart *engine.Position `json:"last_cart,omitempty"`
	Message  string           `json:"message,omitempty"`
	Rendered []string         `json:"rendered,omitempty"`
}

// RunResult contains the result of a run until a crash or the last cart
type RunResult struct {
	Until      string           `json:"until"`
	TicksRun   int              `json:"ticks_run"`
	StopCode   string           `json:"stop_code"`
	Position   *engine.Position `json:"position,omitempty"`
	Answer     string           `json:"answer,omitempty"` // "X,Y"
	Crashes    []engine.Crash   `json:"crashes,omitempty"`
	Events     []SimEvent       `json:"events"`
	SimState   *engine.SimState `json:"sim_state"`
	Message    string           `json:"message,omitempty"`
	HitLimit   bool             `json:"hit_limit,omitempty"`
	TickLimit  int              `json:"tick_limit"`
	FinishedAt int              `json:"finished_at,omitempty"`
}

// SimEvent represents something that happened during a simulation call
type SimEvent struct {
	Type      string           `json:"type"` // "reset", "tick", "crash", "finished", "last_cart", "derailed"
	Message   string           `json:"message"`
	Tick      int              `json:"tick"`
	Timestamp time.Time        `json:"timestamp"`
	Position  *engine.Position `json:"position,omitempty"`
	CartIDs   []string         `json:"cart_ids,omitempty"`
}

// SimEvent types
const (
	EventReset    = "reset"
	EventTick     = "tick"
	EventCrash    = "crash"
	EventFinished = "finished"
	EventLastCart = "last_cart"
	EventDerailed = "derailed"
)

// Run targets
const (
	UntilFirstCrash = "first_crash"
	UntilLastCart   = "last_cart"
)

// HistoryOptions configures tick history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated tick history
type HistoryResponse struct {
	Ticks       []engine.TickEntry `json:"ticks"`
	TotalTicks  int                `json:"total_ticks"`
	Page        int                `json:"page"`
	PageSize    int                `json:"page_size"`
	TotalPages  int                `json:"total_pages"`
	HasNext     bool               `json:"has_next"`
	HasPrevious bool               `json:"has_previous"`
}

// ConfigInfo provides information about a track configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Carts       int    `json:"carts"`
	CrashMode   string `json:"crash_mode"`
}

// SolveResult is the answer for a layout that has no session
type SolveResult struct {
	FirstCrash     string `json:"first_crash,omitempty"` // "X,Y"
	FirstCrashTick int    `json:"first_crash_tick"`
	LastCart       string `json:"last_cart,omitempty"` // "X,Y"
	LastCartTick   int    `json:"last_cart_tick,omitempty"`
	Carts          int    `json:"carts"`
	Crashes        int    `json:"crashes"`
}
