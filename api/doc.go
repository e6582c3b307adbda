// Package api exposes the mission service over REST.
//
// Endpoints:
//
//	POST   /api/sessions              create a mission session
//	GET    /api/sessions              list sessions (sort, order, limit)
//	GET    /api/sessions/{id}         session info
//	DELETE /api/sessions/{id}         delete a session
//
//	POST   /api/sessions/{id}/start   launch the mission loop
//	POST   /api/sessions/{id}/pause   pause the loop
//	POST   /api/sessions/{id}/resume  resume a paused loop
//	POST   /api/sessions/{id}/step    advance one tick (paused missions only)
//	POST   /api/sessions/{id}/reset   reinitialize the mission
//	POST   /api/sessions/{id}/estop   engage the emergency stop
//
//	GET    /api/sessions/{id}/state   full mission snapshot
//	GET    /api/sessions/{id}/metrics telemetry summary
//	GET    /api/sessions/{id}/logs    mission log page (offset, limit)
//
//	GET    /api/scenarios             available scenario profiles
//	GET    /api/robots                available robot profiles
//
//	GET    /ws?session={id}           per-tick snapshot stream
//	GET    /health                    liveness probe
//
// Well-known errors map to status codes: unknown session is 404, control
// conflicts (already running, halted, stepping a running mission) are 409.
package api
