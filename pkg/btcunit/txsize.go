package btcunit

import (
	"fmt"
)

// ByteSize defines a unit to express the serialized size of a transaction
// in bytes. The fee model used by the UTXO clients prices transactions per
// byte and does not apply the segwit weight discount.
type ByteSize struct {
	b uint64
}

// NewByteSize creates a new ByteSize from a uint64 value.
func NewByteSize(val uint64) ByteSize {
	return ByteSize{b: val}
}

// Bytes returns the size as a plain number of bytes.
func (s ByteSize) Bytes() uint64 {
	return s.b
}

// Add returns the sum of two sizes.
func (s ByteSize) Add(other ByteSize) ByteSize {
	return ByteSize{b: s.b + other.b}
}

// Mul returns the size multiplied by n.
func (s ByteSize) Mul(n uint64) ByteSize {
	return ByteSize{b: s.b * n}
}

// String returns the string representation of the byte size.
func (s ByteSize) String() string {
	return fmt.Sprintf("%d B", s.b)
}
