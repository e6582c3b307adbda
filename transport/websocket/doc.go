// Package websocket streams mission state to observers in real time.
//
// The package uses a hub-and-spoke model: a central Hub owns all
// connections, and each client gets dedicated read and write goroutines.
// Clients subscribe to a single mission session via query parameter
// (?session=ab12) and receive a JSON Message per scheduler tick:
//
//	{"session_id": "ab12", "event": "tick", "snapshot": {...}}
//
// plus occasional named events (mission halted, emergency stop).
//
// Observers are read-only. Incoming frames only keep the connection alive;
// mission control happens over the REST API.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run()
//
//	// From the scheduler's tick listener:
//	hub.BroadcastSnapshot(sessionID, snap)
//
// Broadcasts never block the tick loop: the hub queue and each client's send
// buffer drop frames under pressure, and a client that cannot keep up is
// disconnected.
package websocket
