package batch

import "sync"

// Cursors is the per-target rotation table.
//
// Each target owns one offset, created lazily at 0. The zero value is ready
// to use. Cursors is safe for concurrent use; the lock covers only a single
// read-modify-write.
type Cursors struct {
	mu      sync.Mutex
	offsets map[string]int
}

// NewCursors creates an empty rotation table.
func NewCursors() *Cursors {
	return &Cursors{offsets: make(map[string]int)}
}

// Advance returns the current offset for target, reduced modulo size, and
// moves the cursor step positions forward (mod size).
//
// The stored offset may exceed size when a pool shrank since the previous
// call; it is reduced before use so the returned start is always in
// [0, size). Advance panics if size is not positive.
func (c *Cursors) Advance(target string, size, step int) int {
	if size <= 0 {
		panic("batch: Advance called with non-positive pool size")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offsets == nil {
		c.offsets = make(map[string]int)
	}
	start := c.offsets[target] % size
	c.offsets[target] = (start + step) % size
	return start
}

// Peek returns the stored offset for target without advancing it.
// ok is false if the target has never been rotated.
func (c *Cursors) Peek(target string) (offset int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	offset, ok = c.offsets[target]
	return offset, ok
}
