// Package session keeps the bus sessions of the game server.
//
// A session pairs one engine with the level config it was built from. The
// Manager hands sessions out by id, case-insensitively; ids are either
// chosen by the caller or generated as four hex characters, and must be
// usable as a file name.
//
//	manager := session.NewManager(session.WithLogger(log))
//	sess, err := manager.Create("", config)
//	...
//	sess, err = manager.Get(sess.ID)
//
// With NewManagerWithPersistence every create and access writes the session
// through to a SessionPersistence, and lookups of sessions not in memory
// fall back to it. FilePersistence stores one JSON file per session holding
// the config name and the engine state, including the bus snapshot
// (heading, smoothed movement, in-flight smoothing and finish tasks).
// Loading rebuilds the engine from the config and restores that state.
//
// Idle sessions are dropped from memory by CleanupExpiredSessions; their
// files stay behind so a later Get revives them.
package session
