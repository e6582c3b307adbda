package session

import (
	"time"

	"github.com/openrescue/gridrescue/sim/scheduler"
	"github.com/openrescue/gridrescue/sim/service"
)

// SessionPersistence defines the interface for persisting sessions.
type SessionPersistence interface {
	// Save persists a session to storage.
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID.
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage.
	Delete(id string) error

	// ListAll returns all persisted session IDs.
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage.
	Exists(id string) bool
}

// PersistedSessionData is the JSON structure for persisted sessions. The
// mission state rides along as a full scheduler snapshot; the profiles are
// stored by ID and resolved against the config manager on load.
type PersistedSessionData struct {
	ID             string             `json:"id"`
	ScenarioID     string             `json:"scenario_id"`
	RobotID        string             `json:"robot_id"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	State          scheduler.Snapshot `json:"state"`
}
