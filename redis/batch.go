package redis

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type entry struct {
	key   []byte
	value []byte
}

// Batch is an ordered list of SET instructions applied as one MULTI/EXEC group by
// Adapter.Write. Building it does no I/O. A Batch is not safe for concurrent Put.
type Batch struct {
	id       uuid.UUID
	entries  []entry
	consumed bool
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{id: uuid.New()}
}

// Put appends a SET of key to value. Both slices are copied.
func (b *Batch) Put(key, value []byte) {
	b.entries = append(b.entries, entry{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

// Len returns the number of accumulated instructions, not counting the height stamp.
func (b *Batch) Len() int {
	return len(b.entries)
}

// ID identifies the batch in logs.
func (b *Batch) ID() uuid.UUID {
	return b.id
}

// queue enqueues the batch's instructions in order on a MULTI/EXEC pipeliner.
func (b *Batch) queue(ctx context.Context, pipe redis.Pipeliner) {
	for _, e := range b.entries {
		pipe.Set(ctx, string(e.key), e.value, 0)
	}
}
