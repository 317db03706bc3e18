package record

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
)

// HashBuilder accumulates typed values into an FNV-64a digest.
//
// Values are separated so adjacent strings cannot collide ("ab","c" vs
// "a","bc"). Order of calls matters; callers are responsible for feeding
// values in a canonical order.
type HashBuilder struct {
	h hash.Hash64
}

func NewHashBuilder() *HashBuilder {
	return &HashBuilder{h: fnv.New64a()}
}

func (b *HashBuilder) String(s string) *HashBuilder {
	b.h.Write([]byte(s))
	b.h.Write([]byte{0})
	return b
}

func (b *HashBuilder) Int(i int) *HashBuilder {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(i))
	b.h.Write(buf)
	return b
}

func (b *HashBuilder) Bool(v bool) *HashBuilder {
	if v {
		b.h.Write([]byte{1})
	} else {
		b.h.Write([]byte{0})
	}
	return b
}

func (b *HashBuilder) Build() uint64 {
	return b.h.Sum64()
}
