package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/minecart/game/engine"
	"github.com/wricardo/mcp-training/minecart/game/service"
	"github.com/wricardo/mcp-training/minecart/logging"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// trackExtensions are tried in order when resolving a track id
var trackExtensions = []string{".json", ".yaml", ".yml", ".txt"}

// Manager handles track configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.TrackConfig
	defaultID     string // chosen with SetDefault, survives RefreshCache
	configs       map[string]*engine.TrackConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.TrackConfig),
	}

	m.loadDefaultConfig()
	return m, nil
}

// trackID strips a known extension so "classic.json" and "classic" share a cache entry
func trackID(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range trackExtensions {
		if ext == known {
			return strings.TrimSuffix(name, filepath.Ext(name))
		}
	}
	return name
}

// LoadConfig loads a track by id, trying each supported extension
func (m *Manager) LoadConfig(name string) (*engine.TrackConfig, error) {
	id := trackID(name)

	m.mu.RLock()
	// Check cache first
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	// Load from file
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	config, err := m.readTrack(id, name)
	if err != nil {
		return nil, err
	}

	m.configs[id] = config
	return config, nil
}

// readTrack resolves the file for id and decodes it. Caller holds m.mu.
func (m *Manager) readTrack(id, requested string) (*engine.TrackConfig, error) {
	candidates := make([]string, 0, len(trackExtensions)+1)
	if requested != id {
		candidates = append(candidates, requested)
	}
	for _, ext := range trackExtensions {
		candidates = append(candidates, id+ext)
	}

	for _, filename := range candidates {
		path := filepath.Join(m.configDir, filename)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		config, err := engine.DecodeTrackConfig(filename, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := engine.ValidateTrackConfig(config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return config, nil
	}

	return nil, ErrConfigNotFound
}

// ListConfigs returns information about all available tracks, sorted by id
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || trackID(entry.Name()) == entry.Name() {
			continue
		}

		id := trackID(entry.Name())
		if seen[id] {
			continue
		}

		// Try to load the config to get details
		config, err := m.LoadConfig(entry.Name())
		if err != nil {
			logging.L().Debug("skipping track", "file", entry.Name(), "error", err)
			continue
		}
		seen[id] = true

		track, carts, _ := engine.ParseLayout(config.Layout)
		width := 0
		if len(track) > 0 {
			width = len(track[0])
		}
		crashMode := config.CrashMode
		if crashMode == "" {
			crashMode = engine.CrashModeRemove
		}

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    id, // This is the identifier to use for session creation
			Name:        config.Name,
			Description: config.Description,
			Width:       width,
			Height:      len(track),
			Carts:       len(carts),
			CrashMode:   crashMode,
		})
	}

	sort.Slice(configs, func(i, j int) bool {
		return configs[i].ConfigID < configs[j].ConfigID
	})

	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.TrackConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault makes the named track the one new sessions get without a config_id
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return fmt.Errorf("default track %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	m.defaultID = trackID(name)
	return nil
}

// RefreshCache drops every cached track so edited files are read again,
// then re-resolves the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.configs = make(map[string]*engine.TrackConfig)
	m.mu.Unlock()

	m.loadDefaultConfig()
}

// Count returns the number of cached tracks
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.configs)
}

// loadDefaultConfig picks the SetDefault track or classic, then the first
// valid track, then the built-in demo
func (m *Manager) loadDefaultConfig() {
	m.mu.RLock()
	preferred := m.defaultID
	m.mu.RUnlock()
	if preferred == "" {
		preferred = "classic"
	}

	config, err := m.LoadConfig(preferred)
	if err != nil {
		config = nil
		if configs, listErr := m.ListConfigs(); listErr == nil && len(configs) > 0 {
			config, _ = m.LoadConfig(configs[0].Filename)
		}
	}
	if config == nil {
		logging.L().Warn("no valid track found, using built-in default", "dir", m.configDir)
		config = engine.DefaultTrackConfig()
	}

	m.mu.Lock()
	m.defaultConfig = config
	m.mu.Unlock()
}

// SaveConfig validates a track and writes it to disk as JSON
func (m *Manager) SaveConfig(name string, config *engine.TrackConfig) error {
	// Validate config before saving
	if err := engine.ValidateTrackConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	id := trackID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: invalid track id %q", ErrInvalidConfig, name)
	}

	configPath := filepath.Join(m.configDir, id+".json")

	// Marshal config to JSON with indentation
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// Update cache
	m.mu.Lock()
	m.configs[id] = config
	m.mu.Unlock()

	return nil
}
