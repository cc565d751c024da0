package params

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Genesis describes the contracts deployed on a fresh devnet. Amounts are
// base-10 strings in token units.
type Genesis struct {
	Minter string         `yaml:"minter"`
	Router RouterGenesis  `yaml:"router"`
	Tokens []TokenGenesis `yaml:"tokens"`
	Pools  []PoolGenesis  `yaml:"pools"`
}

type RouterGenesis struct {
	Address string `yaml:"address"`
	FeeBps  int64  `yaml:"feeBps"`
}

type TokenGenesis struct {
	Address   string            `yaml:"address"`
	Name      string            `yaml:"name"`
	Symbol    string            `yaml:"symbol"`
	Decimals  uint8             `yaml:"decimals"`
	Supported bool              `yaml:"supported"` // settlement asset on the gateway
	Balances  map[string]string `yaml:"balances"`
}

// PoolGenesis is funded from the minter's balance.
type PoolGenesis struct {
	TokenA  string `yaml:"tokenA"`
	TokenB  string `yaml:"tokenB"`
	AmountA string `yaml:"amountA"`
	AmountB string `yaml:"amountB"`
}

// DefaultGenesis is used when no genesis file is configured: a USD-like
// settlement token, an ETH-like input token and one pool between them.
func DefaultGenesis() Genesis {
	return Genesis{
		Minter: "0xCC00000000000000000000000000000000000001",
		Router: RouterGenesis{Address: "0x5200000000000000000000000000000000000001", FeeBps: 30},
		Tokens: []TokenGenesis{
			{
				Address:   "0x7000000000000000000000000000000000000001",
				Name:      "USD Coin",
				Symbol:    "USDC",
				Decimals:  6,
				Supported: true,
				Balances:  map[string]string{"0xCC00000000000000000000000000000000000001": "1000000000000000"},
			},
			{
				Address:  "0x7000000000000000000000000000000000000002",
				Name:     "Wrapped Ether",
				Symbol:   "WETH",
				Decimals: 18,
				Balances: map[string]string{"0xCC00000000000000000000000000000000000001": "1000000000000000000000000"},
			},
		},
		Pools: []PoolGenesis{
			{
				TokenA:  "0x7000000000000000000000000000000000000002",
				TokenB:  "0x7000000000000000000000000000000000000001",
				AmountA: "100000000000000000000000",
				AmountB: "300000000000000",
			},
		},
	}
}

// LoadGenesis reads and validates a YAML genesis file.
func LoadGenesis(path string) (Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("failed to read genesis: %w", err)
	}
	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Genesis{}, fmt.Errorf("failed to parse genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("invalid genesis: %w", err)
	}
	return g, nil
}

func (g Genesis) Validate() error {
	if !common.IsHexAddress(g.Minter) {
		return fmt.Errorf("minter: invalid address %q", g.Minter)
	}
	if !common.IsHexAddress(g.Router.Address) {
		return fmt.Errorf("router: invalid address %q", g.Router.Address)
	}
	if g.Router.FeeBps < 0 || g.Router.FeeBps >= 10_000 {
		return fmt.Errorf("router: fee %d out of range", g.Router.FeeBps)
	}

	known := make(map[common.Address]bool, len(g.Tokens))
	for _, tok := range g.Tokens {
		if !common.IsHexAddress(tok.Address) {
			return fmt.Errorf("token %s: invalid address %q", tok.Symbol, tok.Address)
		}
		addr := common.HexToAddress(tok.Address)
		if known[addr] {
			return fmt.Errorf("token %s: duplicate address", tok.Symbol)
		}
		known[addr] = true
		for holder, amount := range tok.Balances {
			if !common.IsHexAddress(holder) {
				return fmt.Errorf("token %s: invalid holder %q", tok.Symbol, holder)
			}
			if _, err := ParseAmount(amount); err != nil {
				return fmt.Errorf("token %s: %w", tok.Symbol, err)
			}
		}
	}

	for i, p := range g.Pools {
		for _, a := range []string{p.TokenA, p.TokenB} {
			if !common.IsHexAddress(a) || !known[common.HexToAddress(a)] {
				return fmt.Errorf("pool %d: unknown token %q", i, a)
			}
		}
		for _, amt := range []string{p.AmountA, p.AmountB} {
			v, err := ParseAmount(amt)
			if err != nil {
				return fmt.Errorf("pool %d: %w", i, err)
			}
			if v.Sign() == 0 {
				return fmt.Errorf("pool %d: zero reserve", i)
			}
		}
	}
	return nil
}

// ParseAmount parses a non-negative base-10 integer.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
