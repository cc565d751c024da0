package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	json "github.com/goccy/go-json"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/gateways
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address // gateway address
}

// DefaultDomain returns the devnet domain for the given gateway
func DefaultDomain(gateway common.Address) EIP712Domain {
	return EIP712Domain{
		Name:              "HyperGate",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: gateway,
	}
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// TypedMessage is a struct users sign with eth_signTypedData_v4
type TypedMessage interface {
	PrimaryType() string
	Fields() []apitypes.Type
	Message() apitypes.TypedDataMessage
}

// CreateOrderEIP712 authorizes a direct settlement
type CreateOrderEIP712 struct {
	Token             common.Address
	Amount            *big.Int
	Rate              *big.Int
	RefundAddress     common.Address
	LiquidityProvider common.Address
	Nonce             *big.Int
}

func (CreateOrderEIP712) PrimaryType() string { return "CreateOrder" }

func (CreateOrderEIP712) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "rate", Type: "uint256"},
		{Name: "refundAddress", Type: "address"},
		{Name: "liquidityProvider", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	}
}

func (o CreateOrderEIP712) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"token":             o.Token.Hex(),
		"amount":            bigString(o.Amount),
		"rate":              bigString(o.Rate),
		"refundAddress":     o.RefundAddress.Hex(),
		"liquidityProvider": o.LiquidityProvider.Hex(),
		"nonce":             bigString(o.Nonce),
	}
}

// SwapOrderEIP712 authorizes a settlement through the swap mechanism.
// A two-element path is the fixed-pair variant.
type SwapOrderEIP712 struct {
	Path              []common.Address
	AmountIn          *big.Int
	MinOut            *big.Int
	Rate              *big.Int
	RefundAddress     common.Address
	LiquidityProvider common.Address
	Nonce             *big.Int
}

func (SwapOrderEIP712) PrimaryType() string { return "SwapOrder" }

func (SwapOrderEIP712) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "path", Type: "address[]"},
		{Name: "amountIn", Type: "uint256"},
		{Name: "minOut", Type: "uint256"},
		{Name: "rate", Type: "uint256"},
		{Name: "refundAddress", Type: "address"},
		{Name: "liquidityProvider", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	}
}

func (o SwapOrderEIP712) Message() apitypes.TypedDataMessage {
	path := make([]interface{}, len(o.Path))
	for i, a := range o.Path {
		path[i] = a.Hex()
	}
	return apitypes.TypedDataMessage{
		"path":              path,
		"amountIn":          bigString(o.AmountIn),
		"minOut":            bigString(o.MinOut),
		"rate":              bigString(o.Rate),
		"refundAddress":     o.RefundAddress.Hex(),
		"liquidityProvider": o.LiquidityProvider.Hex(),
		"nonce":             bigString(o.Nonce),
	}
}

// AdminActionEIP712 authorizes one configuration change. Which of Target,
// Flag and Value matter depends on Action.
type AdminActionEIP712 struct {
	Action string
	Target common.Address
	Flag   bool
	Value  *big.Int
	Nonce  *big.Int
}

func (AdminActionEIP712) PrimaryType() string { return "AdminAction" }

func (AdminActionEIP712) Fields() []apitypes.Type {
	return []apitypes.Type{
		{Name: "action", Type: "string"},
		{Name: "target", Type: "address"},
		{Name: "flag", Type: "bool"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
	}
}

func (a AdminActionEIP712) Message() apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"action": a.Action,
		"target": a.Target.Hex(),
		"flag":   a.Flag,
		"value":  bigString(a.Value),
		"nonce":  bigString(a.Nonce),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// EIP712Signer hashes, signs and recovers typed messages for one domain
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) Domain() EIP712Domain { return e.domain }

// TypedData builds the full EIP-712 payload for m
func (e *EIP712Signer) TypedData(m TypedMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":  domainType,
			m.PrimaryType(): m.Fields(),
		},
		PrimaryType: m.PrimaryType(),
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: m.Message(),
	}
}

// Hash returns the digest to sign:
// keccak256("\x19\x01" || domainSeparator || hashStruct(message))
func (e *EIP712Signer) Hash(m TypedMessage) ([]byte, error) {
	typedData := e.TypedData(m)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

func (e *EIP712Signer) Sign(signer *Signer, m TypedMessage) ([]byte, error) {
	hash, err := e.Hash(m)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", m.PrimaryType(), err)
	}
	return signer.Sign(hash)
}

// Recover returns the address that signed m
func (e *EIP712Signer) Recover(m TypedMessage, signature []byte) (common.Address, error) {
	hash, err := e.Hash(m)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash %s: %w", m.PrimaryType(), err)
	}
	return RecoverAddress(hash, signature)
}

// ToJSON renders m the way wallets expect it for eth_signTypedData_v4
func (e *EIP712Signer) ToJSON(m TypedMessage) (string, error) {
	out, err := json.MarshalIndent(e.TypedData(m), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(out), nil
}
