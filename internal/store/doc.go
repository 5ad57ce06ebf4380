// Package store keeps the most recent reconciliation result per target and
// publishes new results to subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Record]: Storage representation of one reconciliation
//
// Nothing is persisted; the store is reset on restart. Subscribers receive
// updates via channels with non-blocking sends (slow subscribers miss
// updates rather than block a request).
package store
