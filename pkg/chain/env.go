package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Env is the execution context of one frame. Contracts receive it on every
// entry point; Sender is the immediate caller of that frame.
type Env struct {
	ctx    context.Context
	chain  *Chain
	Sender common.Address
	Origin common.Address
	Time   uint64
	Seq    uint64
	depth  int
}

func (e *Env) Context() context.Context { return e.ctx }

func (e *Env) State() *StateDB { return e.chain.state }

func (e *Env) Depth() int { return e.depth }

// From opens a frame in which caller is the sender. A contract uses this
// when it calls out to another contract under its own identity.
func (e *Env) From(caller common.Address) *Env {
	next := *e
	next.Sender = caller
	next.depth = e.depth + 1
	return &next
}

// Try runs fn in a revertible frame: if fn fails, every write and log it
// made is undone before the error is returned. Panics inside fn are
// converted to errors the same way.
func (e *Env) Try(fn func(env *Env) error) (err error) {
	if e.depth >= MaxCallDepth {
		return ErrCallDepth
	}
	if err := e.ctx.Err(); err != nil {
		return err
	}

	state := e.chain.state
	snap := state.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("call panicked: %v", r)
		}
		if err != nil {
			state.RevertToSnapshot(snap)
		}
	}()

	next := *e
	next.depth = e.depth + 1
	return fn(&next)
}

// Emit appends a log for contract. kv alternates field names and values.
func (e *Env) Emit(contract common.Address, name string, kv ...any) {
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields[key] = formatField(kv[i+1])
	}
	e.chain.state.addLog(Log{Contract: contract, Name: name, Fields: fields})
}

// Contract resolves a deployed contract.
func (e *Env) Contract(addr common.Address) (any, error) {
	return e.chain.Contract(addr)
}
