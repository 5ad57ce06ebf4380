// Package dispatch issues the outbound calls of a tokenfan batch.
//
// The main components are:
//
//   - [Client]: pooled HTTP client with per-call timeouts and body limits
//   - [Dispatcher]: fans one envelope out over a batch of credentials
//   - [Outcome]: per-credential status code, including two sentinels
//   - [CounterReader]: performs the status query used before and after a batch
//
// Failures at the single-call level are never returned as errors from
// [Dispatcher.Dispatch]; they are recorded as sentinel outcomes so that one
// bad credential cannot abort its siblings.
package dispatch
