package store

// Store defines storage and subscription for reconciliation records.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Update stores a record keyed by Target, stamps the target's running
	// totals onto it, notifies all subscribers and returns the stored record.
	Update(record Record) Record

	// GetAll returns the latest record for every target.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []Record

	// Subscribe returns a channel that receives new records.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Record

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Record)
}
