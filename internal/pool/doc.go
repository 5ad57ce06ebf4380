// Package pool loads credential pools for tokenfan.
//
// A pool is an ordered list of bearer credentials keyed by target and
// [Purpose]. Pools are read from JSON or TOML files on disk. Loading never
// fails toward the caller: an unreadable or malformed file yields an empty
// pool and a warning in the log.
//
// The main components are:
//
//   - [Credential]: a single bearer token
//   - [Store]: the interface consumed by the dispatch core
//   - [FileStore]: reads pool files resolved by a [Resolver]
//   - [WatchingStore]: caches loads and drops the cache when pool files change
//
// Users of the tokenfan library should not need to interact with this
// package directly.
package pool
