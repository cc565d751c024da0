package router

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// reserveKey returns the key holding the reserve of token in the a/b pool.
// The pair is ordered so that a/b and b/a share one pool.
// Format: "{router}/res:{low}:{high}:{token}"
func reserveKey(router, a, b, token common.Address) []byte {
	low, high := a, b
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		low, high = b, a
	}
	return []byte(fmt.Sprintf("%s/res:%s:%s:%s", router.Hex(), low.Hex(), high.Hex(), token.Hex()))
}
