package gateway

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
)

// EstimateSwapOutput quotes a direct inputAsset → targetAsset swap.
func (g *Gateway) EstimateSwapOutput(env *chain.Env, inputAsset, targetAsset common.Address, inputAmount *big.Int) (*big.Int, error) {
	return g.EstimateSwapOutputWithPath(env, []common.Address{inputAsset, targetAsset}, inputAmount)
}

// EstimateSwapOutputWithPath returns the final amount the swap mechanism
// quotes for path. Nothing is written.
func (g *Gateway) EstimateSwapOutputWithPath(env *chain.Env, path []common.Address, inputAmount *big.Int) (*big.Int, error) {
	_, mech, err := g.swapMechanism(env)
	if err != nil {
		return nil, err
	}
	if len(path) < 2 {
		return nil, errors.Wrapf(ErrPathTooShort, "path length %d", len(path))
	}

	amounts, err := mech.Quote(env, path, inputAmount)
	if err != nil {
		return nil, errors.Wrap(err, "quote")
	}
	if len(amounts) == 0 || amounts[len(amounts)-1] == nil {
		return nil, errors.Wrap(ErrSwapFailed, "quote returned no amounts")
	}
	return new(big.Int).Set(amounts[len(amounts)-1]), nil
}
