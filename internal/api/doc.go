// Package api implements the HTTP REST API and WebSocket server for video-route.
//
// This package provides:
//   - The source selection page and its icons (see package panel)
//   - POST /api/v1/dispatch and the legacy POST /system selection endpoints
//   - The Source Tree, dispatch history and serial port listings
//   - WebSocket hub broadcasting dispatch.completed events, which also
//     accepts selections as "select" messages
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Optional JWT bearer tokens and TLS
//
// # Security
//
// When security.jwt.secret is set every route except /api/v1/health and the
// page assets requires an HS256 token minted by IssueToken (the "token"
// command). Browsers pass it as ?token= because WebSocket upgrades and plain
// links cannot carry headers.
//
// # Graceful Degradation
//
// History routes answer 503 when the database is disabled. A broken routing
// document still renders, as an empty tree with the load error.
package api
