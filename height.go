package keydb

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// HeightSize is the encoded width of a height marker.
const HeightSize = 4

// Height is the last position the owning engine has fully processed. The engine advances it
// before a batch commit; the store adapter reads it when stamping the batch.
type Height struct {
	v atomic.Uint32
}

// NewHeight returns a marker initialised to start.
func NewHeight(start uint32) *Height {
	h := &Height{}
	h.v.Store(start)
	return h
}

func (h *Height) Load() uint32 {
	return h.v.Load()
}

func (h *Height) Store(height uint32) {
	h.v.Store(height)
}

// Advance raises the marker to height. A lower height leaves it unchanged.
func (h *Height) Advance(height uint32) {
	for {
		cur := h.v.Load()
		if height <= cur || h.v.CompareAndSwap(cur, height) {
			return
		}
	}
}

// EncodeHeight returns the 4 byte little-endian form stored under the reserved key.
func EncodeHeight(height uint32) []byte {
	b := make([]byte, HeightSize)
	binary.LittleEndian.PutUint32(b, height)
	return b
}

// DecodeHeight parses a stored height. Anything but exactly 4 bytes is MalformedHeightData;
// callers treat an empty value as "no height" before calling this.
func DecodeHeight(b []byte) (uint32, error) {
	if len(b) != HeightSize {
		return 0, Error{
			Code:     MalformedHeightData,
			Err:      fmt.Errorf("height record is %d bytes, want %d", len(b), HeightSize),
			UserData: fmt.Sprintf("%x", b),
		}
	}
	return binary.LittleEndian.Uint32(b), nil
}
