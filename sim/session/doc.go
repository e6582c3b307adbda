// Package session manages mission session lifecycle.
//
// A session pairs a generated 4-character ID with a running mission
// scheduler. The manager keeps sessions in memory, optionally mirrored to a
// file-based persistence layer so missions survive server restarts:
//
//	factory := func(sc engine.ScenarioProfile, rp engine.RobotProfile) (*scheduler.Scheduler, error) {
//		return scheduler.New(sc, rp, orchestrator, logger)
//	}
//
//	persistence, _ := session.NewFilePersistence("sessions", configs, factory)
//	manager := session.NewManagerWithPersistence(factory, persistence, logger)
//	manager.LoadPersistedSessions()
//
// Session IDs are case-insensitive. Expired sessions are evicted by
// CleanupExpiredSessions, typically from a periodic goroutine in main.
package session
