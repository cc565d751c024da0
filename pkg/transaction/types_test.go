package transaction

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/crypto"
)

func TestParseCall(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:  "create order",
			input: `{"type":"createOrder","order":{"token":"0x7000000000000000000000000000000000000001","amount":"1000","rate":"1","refundAddress":"0xAA00000000000000000000000000000000000002","liquidityProvider":"0xBB00000000000000000000000000000000000001"},"nonce":"1","signature":"0x00"}`,
		},
		{
			name:  "swap order",
			input: `{"type":"swapOrder","swap":{"path":["0x7000000000000000000000000000000000000002","0x7000000000000000000000000000000000000001"],"amountIn":"1000","minOut":"900","rate":"1","refundAddress":"0xAA00000000000000000000000000000000000002","liquidityProvider":"0xBB00000000000000000000000000000000000001"},"nonce":"2","signature":"0x00"}`,
		},
		{
			name:  "admin",
			input: `{"type":"admin","admin":{"action":"setFeeRate","value":"50"},"nonce":"3","signature":"0x00"}`,
		},
		{
			name:    "unknown field",
			input:   `{"type":"admin","admin":{"action":"acceptAdmin"},"nonce":"1","signature":"0x00","extra":1}`,
			wantErr: "failed to parse call",
		},
		{
			name:    "missing payload",
			input:   `{"type":"createOrder","nonce":"1","signature":"0x00"}`,
			wantErr: "requires order payload",
		},
		{
			name:    "missing signature",
			input:   `{"type":"admin","admin":{"action":"acceptAdmin"},"nonce":"1"}`,
			wantErr: "missing signature",
		},
		{
			name:    "unknown admin action",
			input:   `{"type":"admin","admin":{"action":"selfDestruct"},"nonce":"1","signature":"0x00"}`,
			wantErr: "unknown admin action",
		},
		{
			name:    "unknown type",
			input:   `{"type":"withdraw","nonce":"1","signature":"0x00"}`,
			wantErr: "unknown call type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCall([]byte(tt.input))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseCall failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestToEIP712(t *testing.T) {
	call := &SignedCall{
		Type: CallSwapOrder,
		Swap: &SwapPayload{
			Path:              []string{"0x7000000000000000000000000000000000000002", "0x7000000000000000000000000000000000000001"},
			AmountIn:          "1000",
			MinOut:            "900",
			Rate:              "3",
			RefundAddress:     "0xAA00000000000000000000000000000000000002",
			LiquidityProvider: "0xBB00000000000000000000000000000000000001",
		},
		Nonce: "9",
	}

	msg, err := call.ToEIP712()
	if err != nil {
		t.Fatalf("ToEIP712 failed: %v", err)
	}
	swap, ok := msg.(crypto.SwapOrderEIP712)
	if !ok {
		t.Fatalf("expected SwapOrderEIP712, got %T", msg)
	}
	if len(swap.Path) != 2 || swap.Path[1] != common.HexToAddress("0x7000000000000000000000000000000000000001") {
		t.Errorf("unexpected path: %v", swap.Path)
	}
	if swap.AmountIn.Int64() != 1000 || swap.MinOut.Int64() != 900 || swap.Rate.Int64() != 3 || swap.Nonce.Int64() != 9 {
		t.Errorf("unexpected amounts: %+v", swap)
	}

	bad := []*SignedCall{
		{Type: CallCreateOrder, Order: &OrderPayload{Token: "not-an-address"}, Nonce: "1"},
		{Type: CallCreateOrder, Order: &OrderPayload{Amount: "12abc"}, Nonce: "1"},
		{Type: CallAdmin, Admin: &AdminPayload{Action: ActionSetFeeRate}, Nonce: "x"},
	}
	for i, c := range bad {
		if _, err := c.ToEIP712(); err == nil {
			t.Errorf("case %d: expected conversion error", i)
		}
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	v := NewVerifier(crypto.DefaultDomain(common.HexToAddress("0x6A00000000000000000000000000000000000001")))

	call := &SignedCall{
		Type:  CallAdmin,
		Admin: &AdminPayload{Action: ActionSetTreasury, Target: "0x7E00000000000000000000000000000000000002"},
		Nonce: "1",
	}
	if err := v.Sign(signer, call); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if !strings.HasPrefix(call.Signature, "0x") || len(call.Signature) != 2+130 {
		t.Fatalf("unexpected signature encoding: %s", call.Signature)
	}

	got, err := v.RecoverSigner(call)
	if err != nil {
		t.Fatalf("RecoverSigner failed: %v", err)
	}
	if got != signer.Address() {
		t.Errorf("recovered %s, want %s", got.Hex(), signer.Address().Hex())
	}

	// survives a JSON round trip
	data, err := call.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	parsed, err := ParseCall(data)
	if err != nil {
		t.Fatalf("ParseCall failed: %v", err)
	}
	if got, _ := v.RecoverSigner(parsed); got != signer.Address() {
		t.Errorf("recovered %s after round trip", got.Hex())
	}

	// any change to the payload changes the signer
	call.Admin.Target = "0x7E00000000000000000000000000000000000003"
	if got, err := v.RecoverSigner(call); err == nil && got == signer.Address() {
		t.Error("tampered call still recovers original signer")
	}

	// a signature for another gateway does not verify here
	other := NewVerifier(crypto.DefaultDomain(common.HexToAddress("0x6A00000000000000000000000000000000000002")))
	call.Admin.Target = "0x7E00000000000000000000000000000000000002"
	if got, err := other.RecoverSigner(call); err == nil && got == signer.Address() {
		t.Error("signature verified under a different domain")
	}
}

func TestDecodeSignature(t *testing.T) {
	tests := []struct {
		name    string
		sig     string
		wantErr bool
	}{
		{"prefixed", "0x" + strings.Repeat("ab", 65), false},
		{"bare", strings.Repeat("ab", 65), false},
		{"short", "0x" + strings.Repeat("ab", 64), true},
		{"not hex", "0x" + strings.Repeat("zz", 65), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeSignature(tt.sig)
			if (err != nil) != tt.wantErr {
				t.Errorf("decodeSignature error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
