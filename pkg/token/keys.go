package token

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// balanceKey returns the key for a holder balance
// Format: "{token}/bal:{holder}"
func balanceKey(token, holder common.Address) []byte {
	return []byte(fmt.Sprintf("%s/bal:%s", token.Hex(), holder.Hex()))
}

// allowanceKey returns the key for an allowance
// Format: "{token}/allow:{owner}:{spender}"
func allowanceKey(token, owner, spender common.Address) []byte {
	return []byte(fmt.Sprintf("%s/allow:%s:%s", token.Hex(), owner.Hex(), spender.Hex()))
}

// Format: "{token}/supply"
func supplyKey(token common.Address) []byte {
	return []byte(fmt.Sprintf("%s/supply", token.Hex()))
}
