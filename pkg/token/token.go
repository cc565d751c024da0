// Package token implements a fungible asset whose balances live in the
// chain state.
package token

import (
	"fmt"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
)

var ErrNotMinter = errors.New("caller is not the minter")

// Token is an ERC20-style asset. Transfers either complete fully or return
// false with no state change.
type Token struct {
	address  common.Address
	name     string
	symbol   string
	decimals uint8
	minter   common.Address
}

func New(address common.Address, name, symbol string, decimals uint8, minter common.Address) *Token {
	return &Token{
		address:  address,
		name:     name,
		symbol:   symbol,
		decimals: decimals,
		minter:   minter,
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

func (t *Token) BalanceOf(env *chain.Env, holder common.Address) *big.Int {
	return env.State().GetBig(balanceKey(t.address, holder))
}

func (t *Token) Allowance(env *chain.Env, owner, spender common.Address) *big.Int {
	return env.State().GetBig(allowanceKey(t.address, owner, spender))
}

func (t *Token) TotalSupply(env *chain.Env) *big.Int {
	return env.State().GetBig(supplyKey(t.address))
}

// Transfer moves amount from the frame sender to to.
func (t *Token) Transfer(env *chain.Env, to common.Address, amount *big.Int) bool {
	return t.move(env, env.Sender, to, amount)
}

// TransferFrom moves amount from owner to to, spending the sender's allowance.
func (t *Token) TransferFrom(env *chain.Env, from, to common.Address, amount *big.Int) bool {
	if !validAmount(amount) {
		return false
	}
	allowance := t.Allowance(env, from, env.Sender)
	if allowance.Cmp(amount) < 0 {
		return false
	}
	if !t.move(env, from, to, amount) {
		return false
	}
	env.State().SetBig(allowanceKey(t.address, from, env.Sender), allowance.Sub(allowance, amount))
	return true
}

// Approve sets the sender's allowance for spender to exactly amount.
func (t *Token) Approve(env *chain.Env, spender common.Address, amount *big.Int) bool {
	if spender == (common.Address{}) || amount == nil || amount.Sign() < 0 {
		return false
	}
	env.State().SetBig(allowanceKey(t.address, env.Sender, spender), amount)
	env.Emit(t.address, "Approval", "owner", env.Sender, "spender", spender, "amount", amount)
	return true
}

// Mint creates amount new units for to. Only the minter may call it.
func (t *Token) Mint(env *chain.Env, to common.Address, amount *big.Int) error {
	if env.Sender != t.minter {
		return errors.Wrapf(ErrNotMinter, "mint %s", t.symbol)
	}
	if to == (common.Address{}) || amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("invalid mint of %v to %s", amount, to.Hex())
	}
	st := env.State()
	st.SetBig(supplyKey(t.address), new(big.Int).Add(t.TotalSupply(env), amount))
	st.SetBig(balanceKey(t.address, to), new(big.Int).Add(t.BalanceOf(env, to), amount))
	env.Emit(t.address, "Transfer", "from", common.Address{}, "to", to, "amount", amount)
	return nil
}

func (t *Token) move(env *chain.Env, from, to common.Address, amount *big.Int) bool {
	if to == (common.Address{}) || !validAmount(amount) {
		return false
	}
	st := env.State()
	fromBal := t.BalanceOf(env, from)
	if fromBal.Cmp(amount) < 0 {
		return false
	}
	st.SetBig(balanceKey(t.address, from), fromBal.Sub(fromBal, amount))
	toBal := t.BalanceOf(env, to)
	st.SetBig(balanceKey(t.address, to), toBal.Add(toBal, amount))
	env.Emit(t.address, "Transfer", "from", from, "to", to, "amount", amount)
	return true
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0
}
