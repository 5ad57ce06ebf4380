// Package server provides the HTTP surface of tokenfan.
//
// Routes:
//
//   - GET /like: run one reconciliation for a subject on a target
//   - GET /token_info: credential pool sizes per known target
//   - GET /api/results: latest reconciliation per target
//   - GET /api/sse: Server-Sent Events stream of new reconciliations
//   - GET /healthz: liveness probe
//
// /like is throttled per target with a token bucket; throttled requests are
// rejected before any work starts. The server supports graceful shutdown via
// context cancellation, with a 5-second timeout for in-flight requests.
//
// Users of the tokenfan library should not need to interact with this
// package directly. The server is started by [tokenfan.Shim.Start].
package server
