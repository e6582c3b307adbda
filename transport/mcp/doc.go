// Package mcp exposes the mission REST API as MCP tools.
//
// The client is a thin proxy: every tool handler translates its arguments
// into an HTTP call against the running API server and formats the JSON
// response as human-readable text, including an ASCII rendering of the
// partially revealed field. No mission state lives in this package.
package mcp
