// Package pool reuses render buffers on the hot path of live sessions,
// where every event produces a full component render.
package pool

import (
	"bytes"
	"sync"
)

// maxRetained is the largest buffer kept for reuse.
const maxRetained = 64 << 10

var buffers = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	buf := buffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool. Oversized buffers are dropped.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxRetained {
		return
	}
	buffers.Put(buf)
}
