package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"

	"github.com/uhyunpark/hypergate/pkg/crypto"
	"github.com/uhyunpark/hypergate/pkg/transaction"
)

func main() {
	var (
		keyHex   = flag.String("key", os.Getenv("PRIVATE_KEY"), "hex private key (generated when empty)")
		gwHex    = flag.String("gateway", "0x6A00000000000000000000000000000000000001", "gateway address (EIP-712 verifying contract)")
		chainID  = flag.Int64("chain-id", 1337, "EIP-712 chain id")
		callType = flag.String("type", "createOrder", "createOrder | swapOrder | admin")
		tokenHex = flag.String("token", "0x7000000000000000000000000000000000000001", "settlement token (createOrder)")
		path     = flag.String("path", "", "comma separated swap path (swapOrder)")
		amount   = flag.String("amount", "1000000", "amount, or amountIn for swapOrder")
		minOut   = flag.String("min-out", "1", "minimum swap output (swapOrder)")
		rate     = flag.String("rate", "1", "off-chain rate recorded with the order")
		refund   = flag.String("refund", "", "refund address (defaults to signer)")
		lp       = flag.String("lp", "0xBB00000000000000000000000000000000000001", "liquidity provider")
		action   = flag.String("action", "", "admin action, e.g. setFeeRate")
		target   = flag.String("target", "", "admin target address")
		value    = flag.String("value", "", "admin value")
		enable   = flag.Bool("flag", false, "admin flag (setAssetSupport)")
		nonce    = flag.String("nonce", "1", "strictly increasing per signer")
	)
	flag.Parse()

	signer, err := loadSigner(*keyHex)
	if err != nil {
		fail("key", err)
	}
	fmt.Fprintf(os.Stderr, "Signer: %s\n", signer.Address().Hex())

	if *refund == "" {
		*refund = signer.Address().Hex()
	}

	call := &transaction.SignedCall{Type: transaction.CallType(*callType), Nonce: *nonce}
	switch call.Type {
	case transaction.CallCreateOrder:
		call.Order = &transaction.OrderPayload{
			Token:             *tokenHex,
			Amount:            *amount,
			Rate:              *rate,
			RefundAddress:     *refund,
			LiquidityProvider: *lp,
		}
	case transaction.CallSwapOrder:
		call.Swap = &transaction.SwapPayload{
			Path:              strings.Split(*path, ","),
			AmountIn:          *amount,
			MinOut:            *minOut,
			Rate:              *rate,
			RefundAddress:     *refund,
			LiquidityProvider: *lp,
		}
	case transaction.CallAdmin:
		call.Admin = &transaction.AdminPayload{Action: *action, Target: *target, Flag: *enable, Value: *value}
	default:
		fail("type", fmt.Errorf("unknown call type %q", *callType))
	}

	if !common.IsHexAddress(*gwHex) {
		fail("gateway", fmt.Errorf("invalid address %q", *gwHex))
	}
	domain := crypto.DefaultDomain(common.HexToAddress(*gwHex))
	domain.ChainID.SetInt64(*chainID)
	verifier := transaction.NewVerifier(domain)

	if err := verifier.Sign(signer, call); err != nil {
		fail("sign", err)
	}

	// Round-trip through the same path the node uses
	data, err := call.Serialize()
	if err != nil {
		fail("serialize", err)
	}
	parsed, err := transaction.ParseCall(data)
	if err != nil {
		fail("parse", err)
	}
	recovered, err := verifier.RecoverSigner(parsed)
	if err != nil || recovered != signer.Address() {
		fail("verify", fmt.Errorf("recovered %s: %v", recovered.Hex(), err))
	}

	out, _ := json.MarshalIndent(call, "", "  ")
	fmt.Println(string(out))
	fmt.Fprintln(os.Stderr, "Submit with: POST /api/v1/calls")
}

func loadSigner(keyHex string) (*crypto.Signer, error) {
	if keyHex == "" {
		signer, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Generated key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
		return signer, nil
	}
	return crypto.FromPrivateKeyHex(keyHex)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "Error (%s): %v\n", step, err)
	os.Exit(1)
}
