package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/minecart/game/engine"
)

// SimulationService defines all simulation operations
type SimulationService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation Operations
	Tick(ctx context.Context, sessionID string, ticks int, reset bool) (*TickResult, error)
	// A run that hits the track's tick limit returns its partial result
	// together with an error wrapping engine.ErrMaxTicks.
	RunToFirstCrash(ctx context.Context, sessionID string) (*RunResult, error)
	RunToLastCart(ctx context.Context, sessionID string) (*RunResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.SimState, error)
	Solve(ctx context.Context, layout []string) (*SolveResult, error)

	// Simulation State
	GetSimState(ctx context.Context, sessionID string) (*engine.SimState, error)
	GetTickHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.TrackConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.TrackConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.TrackConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles track configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.TrackConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.TrackConfig
	SaveConfig(name string, config *engine.TrackConfig) error
}

// Session represents an active simulation session
type Session struct {
	ID             string
	ConfigID       string // track id the session was created from
	Engine         *engine.SimEngine
	Config         *engine.TrackConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
