package chain

import "github.com/cockroachdb/errors"

// MaxCallDepth bounds nested frames within one call.
const MaxCallDepth = 64

var (
	ErrCallDepth        = errors.New("max call depth exceeded")
	ErrContractNotFound = errors.New("contract not found")
	ErrContractExists   = errors.New("contract already deployed")
)
