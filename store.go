package keydb

import "context"

// Batch accumulates "set key to value" instructions without touching the network.
type Batch interface {
	Put(key, value []byte)
	Len() int
}

// KeyValueStore is the contract an owning engine persists its state through.
// Get reports found == false for an absent key. Write applies a batch atomically and
// consumes it.
type KeyValueStore[B Batch] interface {
	Get(ctx context.Context, key []byte) (value []byte, found bool, err error)
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Write(ctx context.Context, batch B) error
	NewBatch() B
}
