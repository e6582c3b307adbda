// Package decision implements the decision orchestrator: it requests
// high-level intent from an external oracle, retries classified throttling
// faults with exponential backoff, and degrades to a deterministic
// exploration fallback when the oracle cannot answer.
//
// Only one request may be in flight at a time; the scheduler keeps the robot
// in the Planning state for the duration and must not issue a second request
// while one is outstanding. Resolved decisions carry the mission epoch that
// issued them so stale resolutions can be discarded after a reset or an
// emergency stop.
package decision
