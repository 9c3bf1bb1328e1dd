// Package session provides session management for the mine cart simulator.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - File persistence of every session's simulation state
//   - Session cleanup and expiration
//
// Manager is the main session manager. Each service.Session owns its own
// engine.SimEngine, so sessions never share carts or tick history.
//
// Session Identifiers:
//
// Generated ids are 4 hex characters from crypto/rand. Callers may choose
// their own id (letters, digits, dash and underscore); lookups ignore case.
//
// Persistence:
//
// FilePersistence writes one <id>.json file per session holding the track id
// and the full SimState. A Manager created with NewManagerWithPersistence
// saves on create and access, loads sessions it does not hold in memory, and
// can restore every file at startup with LoadPersistedSessions.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", configManager)
//	manager := session.NewManagerWithPersistence(persistence)
//
//	sess, err := manager.Create("", "classic", track)
//	sess, err = manager.Get(sess.ID)
package session
