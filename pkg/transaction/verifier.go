package transaction

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/crypto"
)

// Verifier handles call signature verification
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain)}
}

// RecoverSigner returns the address that signed the call. That address is
// the caller the gateway sees.
func (v *Verifier) RecoverSigner(c *SignedCall) (common.Address, error) {
	msg, err := c.ToEIP712()
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid call format: %w", err)
	}

	sigBytes, err := decodeSignature(c.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}

	signer, err := v.eip712Signer.Recover(msg, sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature verification failed: %w", err)
	}
	return signer, nil
}

// Sign fills in the signature of c using signer
func (v *Verifier) Sign(signer *crypto.Signer, c *SignedCall) error {
	msg, err := c.ToEIP712()
	if err != nil {
		return fmt.Errorf("invalid call format: %w", err)
	}
	sig, err := v.eip712Signer.Sign(signer, msg)
	if err != nil {
		return err
	}
	c.Signature = "0x" + hex.EncodeToString(sig)
	return nil
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}
	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}
	return sigBytes, nil
}
