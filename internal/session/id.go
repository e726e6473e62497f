package session

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Session ids are ULIDs: 48-bit millisecond timestamp plus 80 bits of
// randomness, Crockford Base32 encoded to 26 characters. Sorting ids
// sorts sessions by creation time.

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	idMu   sync.Mutex
	idLast uint64
	idSeq  uint16
)

func newSessionID() string {
	idMu.Lock()
	ts := uint64(time.Now().UnixMilli())
	if ts == idLast {
		idSeq++
	} else {
		idLast = ts
		idSeq = 0
	}
	seq := idSeq
	idMu.Unlock()

	var rnd [10]byte
	rand.Read(rnd[:])
	// The sequence keeps ids unique within one millisecond.
	binary.BigEndian.PutUint16(rnd[0:2], seq)

	out := make([]byte, 26)
	writeBase32(out[0:10], ts&((1<<48)-1))
	writeBase32(out[10:18], chunk40(rnd[0:5]))
	writeBase32(out[18:26], chunk40(rnd[5:10]))
	return string(out)
}

// writeBase32 fills dst back to front with 5-bit Crockford digits of v.
func writeBase32(dst []byte, v uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = crockford[v&31]
		v >>= 5
	}
}

func chunk40(b []byte) uint64 {
	return uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
}
