// Package batch partitions credential pools into bounded-size batches.
//
// Two policies are supported. [Rotating] walks each target's pool as a
// circular list, so repeated calls spread usage evenly across every
// credential. [Random] draws a uniform sample without touching any state.
//
// Rotation progress lives in a [Cursors] table that is injected into the
// [Selector]; the table is the only shared mutable state in this package.
package batch
