package transaction

import (
	"fmt"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
)

var ErrStaleNonce = errors.New("nonce already used")

// NonceStore tracks the highest nonce each signer has used. Nonces must
// strictly increase; gaps are allowed.
type NonceStore struct {
	namespace string
}

func NewNonceStore(namespace string) *NonceStore {
	return &NonceStore{namespace: namespace}
}

// Format: "{namespace}/nonce:{address}"
func (n *NonceStore) key(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s/nonce:%s", n.namespace, addr.Hex()))
}

// Last returns the highest nonce used by addr (zero if none).
func (n *NonceStore) Last(env *chain.Env, addr common.Address) *big.Int {
	return env.State().GetBig(n.key(addr))
}

// Use consumes nonce for addr. It is a state write, so a call that
// reverts leaves the nonce unused.
func (n *NonceStore) Use(env *chain.Env, addr common.Address, nonce *big.Int) error {
	last := n.Last(env, addr)
	if nonce == nil || nonce.Cmp(last) <= 0 {
		return errors.Wrapf(ErrStaleNonce, "nonce %v, last used %s", nonce, last)
	}
	env.State().SetBig(n.key(addr), nonce)
	return nil
}
