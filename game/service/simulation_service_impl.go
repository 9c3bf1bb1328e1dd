package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/minecart/game/engine"
	"github.com/wricardo/mcp-training/minecart/logging"
)

// ErrInvalidArgument marks requests that can never succeed as sent
var ErrInvalidArgument = errors.New("invalid argument")

// simulationServiceImpl implements the SimulationService interface
type simulationServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex
}

// NewSimulationService creates a new simulation service instance
func NewSimulationService(sessions SessionManager, configs ConfigManager) SimulationService {
	return &simulationServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// getConfigID returns the config_id for a given track name, used for consistent API responses
func (s *simulationServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *simulationServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	configID := sess.ConfigID
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		SimState:       sess.Engine.Snapshot(),
		TrackConfig:    sess.Config,
	}
}

// getSession looks a session up and marks it as accessed. Caller holds s.mu.
func (s *simulationServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// save persists a session after a mutation; failures are logged, not returned
func (s *simulationServiceImpl) save(ctx context.Context, sessionID, op string) {
	if err := s.sessions.Save(sessionID); err != nil {
		logging.FromContext(ctx).Warn("failed to persist session", "session_id", sessionID, "op", op, "error", err)
	}
}

// CreateSession creates a new simulation session on the named track
func (s *simulationServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.TrackConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			availableConfigs, listErr := s.configs.ListConfigs()
			if listErr == nil && len(availableConfigs) > 0 {
				var configIDs []string
				for _, cfg := range availableConfigs {
					configIDs = append(configIDs, cfg.ConfigID)
				}
				return nil, fmt.Errorf("config '%s' unavailable (available configs: %v): %w", configName, configIDs, err)
			}
			return nil, fmt.Errorf("config '%s' unavailable, use /api/configs to list tracks: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	configID := configName
	if configID == "" {
		configID = s.getConfigID(config.Name)
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logging.FromContext(ctx).Info("session created", "session_id", sess.ID, "track", configID, "carts", len(sess.Engine.GetCarts()))
	return s.sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *simulationServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *simulationServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *simulationServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session not found: %w", err)
	}
	logging.FromContext(ctx).Info("session deleted", "session_id", sessionID)
	return nil
}

// Tick advances a session by up to ticks ticks
func (s *simulationServiceImpl) Tick(ctx context.Context, sessionID string, ticks int, reset bool) (*TickResult, error) {
	if ticks < 1 {
		return nil, fmt.Errorf("%w: ticks must be at least 1, got %d", ErrInvalidArgument, ticks)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	result := &TickResult{
		RequestedTicks: ticks,
		Success:        true,
		Events:         make([]SimEvent, 0),
	}

	if reset {
		if _, err := sess.Engine.Reset(); err != nil {
			return nil, fmt.Errorf("failed to reset session: %w", err)
		}
		result.Events = append(result.Events, resetEvent())
	}

	// Limit ticks per call
	if ticks > engine.MaxTicksPerCall {
		result.Truncated = true
		result.Limit = engine.MaxTicksPerCall
		ticks = engine.MaxTicksPerCall
	}

	result.StartTick = sess.Engine.GetTick()
	result.StartingCarts = len(sess.Engine.LiveCarts())

	if sess.Engine.IsFinished() {
		result.Success = false
		result.StoppedReason = engine.ErrSimulationFinished.Error()
		result.StopReasonCode = engine.StopFinished
	}

	for i := 0; i < ticks && !sess.Engine.IsFinished(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report, err := sess.Engine.Tick()
		if report.Tick > 0 {
			result.TicksRun++
			result.Reports = append(result.Reports, report)
			result.Crashes = append(result.Crashes, report.Crashes...)
			result.Events = append(result.Events, crashEvents(report.Crashes)...)
		}
		if err != nil {
			result.Success = false
			result.StoppedReason = err.Error()
			break
		}
	}

	state := sess.Engine.Snapshot()
	if result.TicksRun > 0 {
		result.Events = append(result.Events, SimEvent{
			Type:      EventTick,
			Message:   fmt.Sprintf("Advanced %d ticks to tick %d", result.TicksRun, state.Tick),
			Tick:      state.Tick,
			Timestamp: time.Now(),
		})
		result.Events = append(result.Events, finishEvents(state)...)
		if state.Finished {
			result.StopReasonCode = engine.StopCode(state)
			if result.StoppedReason == "" {
				result.StoppedReason = state.Message
			}
		}
	}

	result.SimState = state
	result.EndTick = state.Tick
	result.EndingCarts = state.CartsRemaining
	result.Finished = state.Finished
	result.LastCart = state.LastCart
	result.Message = state.Message
	result.Rendered = state.Rendered

	logging.FromContext(ctx).Debug("ticked", "session_id", sessionID, "ticks", result.TicksRun, "tick", state.Tick, "carts", state.CartsRemaining)
	s.save(ctx, sessionID, "tick")
	return result, nil
}

// RunToFirstCrash ticks a session until the first collision
func (s *simulationServiceImpl) RunToFirstCrash(ctx context.Context, sessionID string) (*RunResult, error) {
	return s.run(ctx, sessionID, UntilFirstCrash)
}

// RunToLastCart ticks a session until at most one cart is left
func (s *simulationServiceImpl) RunToLastCart(ctx context.Context, sessionID string) (*RunResult, error) {
	return s.run(ctx, sessionID, UntilLastCart)
}

func (s *simulationServiceImpl) run(ctx context.Context, sessionID, until string) (*RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	limit := sess.Config.MaxTicks
	if limit <= 0 {
		limit = engine.DefaultMaxTicks
	}

	var report engine.RunReport
	var runErr error
	if until == UntilFirstCrash {
		report, runErr = sess.Engine.RunUntilFirstCrash(limit)
	} else {
		report, runErr = sess.Engine.RunUntilLastCart(limit)
	}

	state := sess.Engine.Snapshot()
	result := &RunResult{
		Until:     until,
		TicksRun:  report.TicksRun,
		StopCode:  report.StopCode,
		Crashes:   report.Crashes,
		Events:    crashEvents(report.Crashes),
		SimState:  state,
		Message:   state.Message,
		TickLimit: limit,
	}
	result.Events = append(result.Events, finishEvents(state)...)

	switch {
	case errors.Is(runErr, engine.ErrMaxTicks):
		result.HitLimit = true
	case runErr != nil && !errors.Is(runErr, engine.ErrDerailed):
		return nil, runErr
	}

	if until == UntilFirstCrash {
		result.Position = state.FirstCrash
	} else {
		result.Position = state.LastCart
	}
	if result.Position != nil {
		result.Answer = engine.FormatPosition(*result.Position)
		result.FinishedAt = state.Tick
	}

	logging.FromContext(ctx).Info("run finished",
		"session_id", sessionID, "until", until, "ticks", report.TicksRun,
		"stop_code", report.StopCode, "answer", result.Answer)
	s.save(ctx, sessionID, "run")

	if result.HitLimit {
		return result, fmt.Errorf("%w: no %s within %d ticks", engine.ErrMaxTicks, until, limit)
	}
	return result, nil
}

// Reset puts every cart of a session back at its starting position
func (s *simulationServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.SimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := sess.Engine.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset session: %w", err)
	}

	s.save(ctx, sessionID, "reset")
	return sess.Engine.Snapshot(), nil
}

// Solve runs a layout without creating a session
func (s *simulationServiceImpl) Solve(ctx context.Context, layout []string) (*SolveResult, error) {
	if len(layout) == 0 {
		return nil, fmt.Errorf("%w: layout is required", ErrInvalidArgument)
	}

	solution, err := engine.Solve(layout, 0)
	if err != nil {
		return nil, err
	}

	result := &SolveResult{
		FirstCrashTick: solution.FirstCrashTick,
		LastCartTick:   solution.LastCartTick,
		Carts:          solution.Carts,
		Crashes:        solution.Crashes,
	}
	if solution.FirstCrash != nil {
		result.FirstCrash = engine.FormatPosition(*solution.FirstCrash)
	}
	if solution.LastCart != nil {
		result.LastCart = engine.FormatPosition(*solution.LastCart)
	}
	return result, nil
}

// GetSimState retrieves the current simulation state
func (s *simulationServiceImpl) GetSimState(ctx context.Context, sessionID string) (*engine.SimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Snapshot(), nil
}

// GetTickHistory returns paginated tick history
func (s *simulationServiceImpl) GetTickHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	history := sess.Engine.GetTickHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	ticks := []engine.TickEntry{}
	if start < total {
		if opts.Order == "desc" {
			// Most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				ticks = append(ticks, history[i])
			}
		} else {
			ticks = append(ticks, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Ticks:       ticks,
		TotalTicks:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available tracks
func (s *simulationServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific track
func (s *simulationServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.TrackConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a track to disk
func (s *simulationServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.TrackConfig) error {
	if configName == "" {
		return fmt.Errorf("%w: config name is required", ErrInvalidArgument)
	}
	return s.configs.SaveConfig(configName, config)
}

func resetEvent() SimEvent {
	return SimEvent{
		Type:      EventReset,
		Message:   "Simulation reset to initial state",
		Timestamp: time.Now(),
	}
}

// crashEvents generates one event per crash
func crashEvents(crashes []engine.Crash) []SimEvent {
	events := make([]SimEvent, 0, len(crashes))
	for _, crash := range crashes {
		pos := crash.Pos
		events = append(events, SimEvent{
			Type:      EventCrash,
			Message:   fmt.Sprintf("Crash at %s on tick %d", engine.FormatPosition(pos), crash.Tick),
			Tick:      crash.Tick,
			Timestamp: time.Now(),
			Position:  &pos,
			CartIDs:   crash.CartIDs,
		})
	}
	return events
}

// finishEvents describes how a finished simulation ended
func finishEvents(state *engine.SimState) []SimEvent {
	if !state.Finished {
		return nil
	}

	events := []SimEvent{}
	switch {
	case state.Derailed:
		events = append(events, SimEvent{
			Type:      EventDerailed,
			Message:   state.Message,
			Tick:      state.Tick,
			Timestamp: time.Now(),
		})
	case state.LastCart != nil:
		events = append(events, SimEvent{
			Type:      EventLastCart,
			Message:   state.Message,
			Tick:      state.Tick,
			Timestamp: time.Now(),
			Position:  state.LastCart,
		})
	}

	events = append(events, SimEvent{
		Type:      EventFinished,
		Message:   state.Message,
		Tick:      state.Tick,
		Timestamp: time.Now(),
	})
	return events
}
