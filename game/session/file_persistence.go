package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/minecart/game/engine"
	"github.com/wricardo/mcp-training/minecart/game/service"
)

// FilePersistence implements SessionPersistence using file system storage
type FilePersistence struct {
	sessionsDir   string
	configManager service.ConfigManager
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(sessionsDir string, configManager service.ConfigManager) (*FilePersistence, error) {
	// Create sessions directory if it doesn't exist
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		sessionsDir:   sessionsDir,
		configManager: configManager,
	}, nil
}

// Save persists a session to a JSON file named after its id
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	configID := session.ConfigID
	if configID == "" {
		configID = session.Config.Name
	}

	data := PersistedSessionData{
		ID:             session.ID,
		ConfigName:     configID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		SimState:       session.Engine.GetState(),
	}

	// Marshal to JSON with indentation for readability
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	// Write through a temp file and rename
	filePath := fp.getFilePath(session.ID)
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load retrieves a session from a JSON file, matching the id in any case
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	filePath, ok := fp.findFile(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	// Read file
	jsonData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	// Unmarshal JSON
	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	if data.SimState == nil {
		return nil, fmt.Errorf("session file %s has no sim_state", id)
	}

	trackConfig, err := fp.loadTrack(data.ConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
	}

	simEngine, err := engine.NewEngine(trackConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	// Restore the saved carts, crashes and history
	if err := simEngine.SetState(data.SimState); err != nil {
		return nil, fmt.Errorf("failed to set sim state: %w", err)
	}

	// Create session
	session := &service.Session{
		ID:             data.ID,
		ConfigID:       data.ConfigName,
		Engine:         simEngine,
		Config:         trackConfig,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}

	return session, nil
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	filePath, ok := fp.findFile(id)
	if !ok {
		return ErrSessionNotFound
	}

	// Remove file
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			// Remove .json extension to get session ID
			sessionID := strings.TrimSuffix(name, ".json")
			sessionIDs = append(sessionIDs, sessionID)
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, ok := fp.findFile(id)
	return ok
}

// findFile returns the file holding id. Ids are case-insensitive but files
// keep the spelling the session was created with.
func (fp *FilePersistence) findFile(id string) (string, bool) {
	filePath := fp.getFilePath(id)
	if _, err := os.Stat(filePath); err == nil {
		return filePath, true
	}

	ids, err := fp.ListAll()
	if err != nil {
		return "", false
	}
	for _, stored := range ids {
		if strings.EqualFold(stored, id) {
			return fp.getFilePath(stored), true
		}
	}
	return "", false
}

// getFilePath returns the full file path for a session ID
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", id))
}

// loadTrack resolves a stored track id. The built-in demo track has no file,
// so it is rebuilt when the tracks directory does not provide one.
func (fp *FilePersistence) loadTrack(configID string) (*engine.TrackConfig, error) {
	trackConfig, err := fp.configManager.LoadConfig(configID)
	if err != nil && configID == engine.DefaultTrackID {
		return engine.DefaultTrackConfig(), nil
	}
	return trackConfig, err
}
