package storage

import "encoding/binary"

// Key schema shared by every contract living in the state database:
//
//   <contract-hex>/<field>           → contract scalar
//   <contract-hex>/<field>:<suffix>  → contract mapping entry
//
// Chain bookkeeping uses the reserved "chain/" namespace:
//
//   chain/seq   → last committed call sequence (8-byte big endian)
//   chain/root  → last state root

// UpperBound returns the exclusive upper bound for a prefix scan
func UpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	// prefix is all 0xff: no upper bound
	return nil
}

// Uint64Bytes encodes v as 8-byte big endian so that keys sort numerically.
func Uint64Bytes(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}

// BytesUint64 decodes a value written by Uint64Bytes. Short input decodes as 0.
func BytesUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
