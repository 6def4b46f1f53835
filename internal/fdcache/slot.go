package fdcache

import (
	"sync"

	"github.com/openarchive/openarchive/internal/archtypes"
)

// raBuffer is a single slot's aligned read-ahead buffer.
type raBuffer struct {
	valid        bool
	rdInProgress bool
	alignedOff   int64
	data         []byte
	filled       int64 // bytes of data actually populated by the last read
	err          error
}

// covers reports whether the buffer currently holds [off, off+length).
func (b *raBuffer) covers(alignedOff, off, length int64) bool {
	if !b.valid || b.alignedOff != alignedOff {
		return false
	}
	return off >= b.alignedOff && off+length <= b.alignedOff+b.filled
}

// slot is one entry in the circular fd-cache array.
type slot struct {
	opMutex sync.Mutex

	valid bool
	busy  bool

	uuidStr string
	file    *archtypes.File

	buf raBuffer
}

func (s *slot) invalidateBuffer() {
	s.buf = raBuffer{}
}
