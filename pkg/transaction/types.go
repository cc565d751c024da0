package transaction

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"

	"github.com/uhyunpark/hypergate/pkg/crypto"
)

// CallType selects the gateway entry point a signed call invokes
type CallType string

const (
	CallCreateOrder CallType = "createOrder" // direct settlement
	CallSwapOrder   CallType = "swapOrder"   // settlement through the swap mechanism
	CallAdmin       CallType = "admin"       // configuration change
)

// Admin actions carried by AdminPayload.Action
const (
	ActionSetSwapMechanism = "setSwapMechanism"
	ActionSetAssetSupport  = "setAssetSupport"
	ActionSetTreasury      = "setTreasury"
	ActionSetFeeRate       = "setFeeRate"
	ActionTransferAdmin    = "transferAdmin"
	ActionAcceptAdmin      = "acceptAdmin"
)

// SignedCall is the wire format of a call submitted to the node.
// The signer of the EIP-712 digest is the caller.
type SignedCall struct {
	Type      CallType      `json:"type"`
	Order     *OrderPayload `json:"order,omitempty"`
	Swap      *SwapPayload  `json:"swap,omitempty"`
	Admin     *AdminPayload `json:"admin,omitempty"`
	Nonce     string        `json:"nonce"`     // BigInt as string
	Signature string        `json:"signature"` // 0x-prefixed, 65 bytes
}

// OrderPayload carries createOrder arguments. Amounts are base-10 strings.
type OrderPayload struct {
	Token             string `json:"token"`
	Amount            string `json:"amount"`
	Rate              string `json:"rate"`
	RefundAddress     string `json:"refundAddress"`
	LiquidityProvider string `json:"liquidityProvider"`
}

// SwapPayload carries createOrderWithSwap / createOrderWithCustomPath
// arguments. A two-element path selects the fixed-pair entry point.
type SwapPayload struct {
	Path              []string `json:"path"`
	AmountIn          string   `json:"amountIn"`
	MinOut            string   `json:"minOut"`
	Rate              string   `json:"rate"`
	RefundAddress     string   `json:"refundAddress"`
	LiquidityProvider string   `json:"liquidityProvider"`
}

type AdminPayload struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
	Flag   bool   `json:"flag,omitempty"`
	Value  string `json:"value,omitempty"`
}

func parseBig(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %s", field, s)
	}
	return v, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s: %s", field, s)
	}
	return common.HexToAddress(s), nil
}

// NonceValue returns the parsed nonce
func (c *SignedCall) NonceValue() (*big.Int, error) {
	return parseBig("nonce", c.Nonce)
}

// ToEIP712 converts the call into the typed message its signature covers
func (c *SignedCall) ToEIP712() (crypto.TypedMessage, error) {
	nonce, err := c.NonceValue()
	if err != nil {
		return nil, err
	}

	switch c.Type {
	case CallCreateOrder:
		return c.Order.toEIP712(nonce)
	case CallSwapOrder:
		return c.Swap.toEIP712(nonce)
	case CallAdmin:
		return c.Admin.toEIP712(nonce)
	default:
		return nil, fmt.Errorf("unknown call type: %s", c.Type)
	}
}

func (o *OrderPayload) toEIP712(nonce *big.Int) (crypto.CreateOrderEIP712, error) {
	var (
		msg = crypto.CreateOrderEIP712{Nonce: nonce}
		err error
	)
	if msg.Token, err = parseAddress("token", o.Token); err != nil {
		return msg, err
	}
	if msg.Amount, err = parseBig("amount", o.Amount); err != nil {
		return msg, err
	}
	if msg.Rate, err = parseBig("rate", o.Rate); err != nil {
		return msg, err
	}
	if msg.RefundAddress, err = parseAddress("refundAddress", o.RefundAddress); err != nil {
		return msg, err
	}
	if msg.LiquidityProvider, err = parseAddress("liquidityProvider", o.LiquidityProvider); err != nil {
		return msg, err
	}
	return msg, nil
}

func (s *SwapPayload) toEIP712(nonce *big.Int) (crypto.SwapOrderEIP712, error) {
	var (
		msg = crypto.SwapOrderEIP712{Nonce: nonce, Path: make([]common.Address, len(s.Path))}
		err error
	)
	for i, p := range s.Path {
		if msg.Path[i], err = parseAddress(fmt.Sprintf("path[%d]", i), p); err != nil {
			return msg, err
		}
	}
	if msg.AmountIn, err = parseBig("amountIn", s.AmountIn); err != nil {
		return msg, err
	}
	if msg.MinOut, err = parseBig("minOut", s.MinOut); err != nil {
		return msg, err
	}
	if msg.Rate, err = parseBig("rate", s.Rate); err != nil {
		return msg, err
	}
	if msg.RefundAddress, err = parseAddress("refundAddress", s.RefundAddress); err != nil {
		return msg, err
	}
	if msg.LiquidityProvider, err = parseAddress("liquidityProvider", s.LiquidityProvider); err != nil {
		return msg, err
	}
	return msg, nil
}

func (a *AdminPayload) toEIP712(nonce *big.Int) (crypto.AdminActionEIP712, error) {
	var (
		msg = crypto.AdminActionEIP712{Action: a.Action, Flag: a.Flag, Nonce: nonce}
		err error
	)
	if msg.Target, err = parseAddress("target", a.Target); err != nil {
		return msg, err
	}
	if msg.Value, err = parseBig("value", a.Value); err != nil {
		return msg, err
	}
	return msg, nil
}

// Validate performs basic validation on call structure
func (c *SignedCall) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("missing call type")
	}
	if c.Signature == "" {
		return fmt.Errorf("missing signature")
	}
	if c.Nonce == "" {
		return fmt.Errorf("missing nonce")
	}

	switch c.Type {
	case CallCreateOrder:
		if c.Order == nil {
			return fmt.Errorf("createOrder requires order payload")
		}
	case CallSwapOrder:
		if c.Swap == nil {
			return fmt.Errorf("swapOrder requires swap payload")
		}
	case CallAdmin:
		if c.Admin == nil {
			return fmt.Errorf("admin call requires admin payload")
		}
		switch c.Admin.Action {
		case ActionSetSwapMechanism, ActionSetAssetSupport, ActionSetTreasury,
			ActionSetFeeRate, ActionTransferAdmin, ActionAcceptAdmin:
		default:
			return fmt.Errorf("unknown admin action: %s", c.Admin.Action)
		}
	default:
		return fmt.Errorf("unknown call type: %s", c.Type)
	}
	return nil
}

// Serialize converts SignedCall to JSON bytes
func (c *SignedCall) Serialize() ([]byte, error) {
	return json.Marshal(c)
}

// ParseCall decodes and validates a JSON-encoded SignedCall
func ParseCall(data []byte) (*SignedCall, error) {
	var c SignedCall
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse call: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid call: %w", err)
	}
	return &c, nil
}

// Example:
//   {
//     "type": "swapOrder",
//     "swap": {
//       "path": ["0x7000...0002", "0x7000...0001"],
//       "amountIn": "1000",
//       "minOut": "900",
//       "rate": "1",
//       "refundAddress": "0xAA00...0002",
//       "liquidityProvider": "0xBB00...0001"
//     },
//     "nonce": "7",
//     "signature": "0x1234567890abcdef..."
//   }
