// Package service defines the mission operations exposed to every transport
// (REST, WebSocket, MCP) and their data transfer types. The implementation
// composes a session manager and a profile config manager behind a single
// interface so transports never touch scheduler internals directly.
package service
