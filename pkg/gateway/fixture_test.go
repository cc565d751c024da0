package gateway

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/router"
	"github.com/uhyunpark/hypergate/pkg/storage"
	"github.com/uhyunpark/hypergate/pkg/token"
	"github.com/uhyunpark/hypergate/pkg/util"
)

var (
	admin    = common.HexToAddress("0xAD00000000000000000000000000000000000001")
	treasury = common.HexToAddress("0x7E00000000000000000000000000000000000001")
	user     = common.HexToAddress("0xAA00000000000000000000000000000000000001")
	refund   = common.HexToAddress("0xAA00000000000000000000000000000000000002")
	lp       = common.HexToAddress("0xBB00000000000000000000000000000000000001")
	minter   = common.HexToAddress("0xCC00000000000000000000000000000000000001")

	gwAddr     = common.HexToAddress("0x6A00000000000000000000000000000000000001")
	routerAddr = common.HexToAddress("0x5200000000000000000000000000000000000001")
	usdAddr    = common.HexToAddress("0x7000000000000000000000000000000000000001")
	ethAddr    = common.HexToAddress("0x7000000000000000000000000000000000000002")
	btcAddr    = common.HexToAddress("0x7000000000000000000000000000000000000003")
)

const blockTime = 1_700_000_000

type fixture struct {
	chain  *chain.Chain
	gw     *Gateway
	router *router.Router
	tokens map[common.Address]*token.Token
}

// newFixture deploys a gateway (fee 100 bps, USD supported), three tokens
// and a router with ETH/USD and BTC/ETH pools of 100k each. The user holds
// 100k of every token and has approved the gateway for all of it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend, err := storage.NewPebbleMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	c, err := chain.New(backend, chain.Config{Clock: util.NewManualClock(time.Unix(blockTime, 0))})
	if err != nil {
		t.Fatalf("failed to create chain: %v", err)
	}
	f := &fixture{
		chain:  c,
		gw:     New(gwAddr, nil),
		router: router.New(routerAddr, router.DefaultFeeBps),
		tokens: make(map[common.Address]*token.Token),
	}
	f.deploy(t, gwAddr, f.gw)
	f.deploy(t, routerAddr, f.router)
	for addr, sym := range map[common.Address]string{usdAddr: "USD", ethAddr: "ETH", btcAddr: "BTC"} {
		tok := token.New(addr, sym, sym, 18, minter)
		f.deploy(t, addr, tok)
		f.tokens[addr] = tok
	}

	f.mustExec(t, minter, func(env *chain.Env) error {
		for _, tok := range f.tokens {
			if err := tok.Mint(env, minter, big.NewInt(1_000_000)); err != nil {
				return err
			}
			if err := tok.Mint(env, user, big.NewInt(100_000)); err != nil {
				return err
			}
			tok.Approve(env, routerAddr, big.NewInt(1_000_000))
		}
		if err := f.router.AddLiquidity(env, ethAddr, usdAddr, big.NewInt(100_000), big.NewInt(100_000)); err != nil {
			return err
		}
		return f.router.AddLiquidity(env, btcAddr, ethAddr, big.NewInt(100_000), big.NewInt(100_000))
	})
	f.mustExec(t, user, func(env *chain.Env) error {
		for _, tok := range f.tokens {
			tok.Approve(env, gwAddr, big.NewInt(100_000))
		}
		return nil
	})
	f.mustExec(t, admin, func(env *chain.Env) error {
		if err := f.gw.Initialize(env, admin, treasury, 100); err != nil {
			return err
		}
		return f.gw.SetAssetSupport(env, usdAddr, true)
	})
	return f
}

func (f *fixture) deploy(t *testing.T, addr common.Address, contract any) {
	t.Helper()
	if err := f.chain.Deploy(addr, contract); err != nil {
		t.Fatalf("Deploy %s: %v", addr.Hex(), err)
	}
}

func (f *fixture) exec(sender common.Address, fn func(env *chain.Env) error) (chain.Receipt, error) {
	return f.chain.Execute(context.Background(), sender, fn)
}

func (f *fixture) mustExec(t *testing.T, sender common.Address, fn func(env *chain.Env) error) chain.Receipt {
	t.Helper()
	receipt, err := f.exec(sender, fn)
	if err != nil {
		t.Fatalf("call from %s failed: %v", sender.Hex(), err)
	}
	return receipt
}

func (f *fixture) view(fn func(env *chain.Env)) {
	f.chain.View(context.Background(), common.Address{}, func(env *chain.Env) error {
		fn(env)
		return nil
	})
}

func (f *fixture) balance(tok, holder common.Address) int64 {
	var out int64
	f.view(func(env *chain.Env) {
		out = f.tokens[tok].BalanceOf(env, holder).Int64()
	})
	return out
}

func (f *fixture) nextOrderID() uint64 {
	var id uint64
	f.view(func(env *chain.Env) { id = f.gw.NextOrderID(env) })
	return id
}

func (f *fixture) order(id uint64) Order {
	var o Order
	f.view(func(env *chain.Env) { o = f.gw.GetOrderInfo(env, id) })
	return o
}

func (f *fixture) useMechanism(t *testing.T, addr common.Address) {
	t.Helper()
	f.mustExec(t, admin, func(env *chain.Env) error {
		return f.gw.SetSwapMechanism(env, addr)
	})
}

func (f *fixture) createOrder(asset common.Address, amount int64) (uint64, error) {
	var id uint64
	_, err := f.exec(user, func(env *chain.Env) error {
		var err error
		id, err = f.gw.CreateOrder(env, asset, big.NewInt(amount), big.NewInt(1), refund, lp)
		return err
	})
	return id, err
}

// stubMechanism returns canned results without moving funds.
type stubMechanism struct {
	quote   []*big.Int
	result  []*big.Int
	swapErr error
	calls   int
}

func (m *stubMechanism) Quote(_ *chain.Env, _ []common.Address, _ *big.Int) ([]*big.Int, error) {
	return m.quote, nil
}

func (m *stubMechanism) Swap(env *chain.Env, _ []common.Address, _, _ *big.Int, _ common.Address, _ uint64) ([]*big.Int, error) {
	m.calls++
	// partial write that must not survive a failed swap
	env.State().SetUint64([]byte("stub/touched"), 1)
	if m.swapErr != nil {
		return nil, m.swapErr
	}
	return m.result, nil
}

func amounts(vs ...int64) []*big.Int {
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = big.NewInt(v)
	}
	return out
}

// faultyToken refuses transfers to one recipient and, optionally, every
// approval. Pulls through TransferFrom still work.
type faultyToken struct {
	*token.Token
	refuseTo      common.Address
	refuseApprove bool
}

func (ft *faultyToken) Transfer(env *chain.Env, to common.Address, amount *big.Int) bool {
	if to == ft.refuseTo {
		return false
	}
	return ft.Token.Transfer(env, to, amount)
}

func (ft *faultyToken) Approve(env *chain.Env, spender common.Address, amount *big.Int) bool {
	if ft.refuseApprove {
		return false
	}
	return ft.Token.Approve(env, spender, amount)
}
