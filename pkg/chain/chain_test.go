package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/storage"
	"github.com/uhyunpark/hypergate/pkg/util"
)

var (
	alice    = common.HexToAddress("0xAA00000000000000000000000000000000000001")
	contract = common.HexToAddress("0xCC00000000000000000000000000000000000001")
	errBoom  = errors.New("boom")
)

func newTestChain(t *testing.T, backend storage.Backend) *Chain {
	t.Helper()
	c, err := New(backend, Config{Clock: util.NewManualClock(time.Unix(1_700_000_000, 0))})
	if err != nil {
		t.Fatalf("failed to create chain: %v", err)
	}
	return c
}

func memBackend(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := storage.NewPebbleMemStore()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestExecuteCommitsOnSuccess(t *testing.T) {
	c := newTestChain(t, memBackend(t))

	receipt, err := c.Execute(context.Background(), alice, func(env *Env) error {
		if env.Time != 1_700_000_000 {
			t.Errorf("env.Time = %d, want 1700000000", env.Time)
		}
		env.State().SetUint64([]byte("k"), 7)
		env.Emit(contract, "Stored", "value", uint64(7), "by", env.Sender)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !receipt.Success || receipt.Seq != 1 {
		t.Errorf("receipt = %+v, want success with seq 1", receipt)
	}
	if len(receipt.Logs) != 1 || receipt.Logs[0].Fields["by"] != alice.Hex() {
		t.Errorf("logs = %+v, want one Stored log by alice", receipt.Logs)
	}

	c.View(context.Background(), alice, func(env *Env) error {
		if got := env.State().GetUint64([]byte("k")); got != 7 {
			t.Errorf("k = %d, want 7", got)
		}
		return nil
	})
}

func TestExecuteDiscardsOnFailure(t *testing.T) {
	c := newTestChain(t, memBackend(t))

	receipt, err := c.Execute(context.Background(), alice, func(env *Env) error {
		env.State().SetUint64([]byte("k"), 7)
		env.Emit(contract, "Stored")
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
	if receipt.Success || len(receipt.Logs) != 0 {
		t.Errorf("receipt = %+v, want failure without logs", receipt)
	}
	if c.Seq() != 0 {
		t.Errorf("seq = %d, want 0 after revert", c.Seq())
	}

	c.View(context.Background(), alice, func(env *Env) error {
		if got := env.State().Get([]byte("k")); got != nil {
			t.Errorf("k = %x, want nil after revert", got)
		}
		return nil
	})
}

func TestTryRevertsOnlyInnerFrame(t *testing.T) {
	c := newTestChain(t, memBackend(t))

	receipt, err := c.Execute(context.Background(), alice, func(env *Env) error {
		st := env.State()
		st.SetUint64([]byte("outer"), 1)
		env.Emit(contract, "Outer")

		inner := env.Try(func(env *Env) error {
			st.SetUint64([]byte("outer"), 2)
			st.SetUint64([]byte("inner"), 1)
			env.Emit(contract, "Inner")
			return errBoom
		})
		if !errors.Is(inner, errBoom) {
			t.Errorf("inner err = %v, want errBoom", inner)
		}
		if got := st.GetUint64([]byte("outer")); got != 1 {
			t.Errorf("outer = %d, want 1 after inner revert", got)
		}
		if st.Get([]byte("inner")) != nil {
			t.Error("inner write survived revert")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(receipt.Logs) != 1 || receipt.Logs[0].Name != "Outer" {
		t.Errorf("logs = %+v, want only Outer", receipt.Logs)
	}
}

func TestTryRecoversPanic(t *testing.T) {
	c := newTestChain(t, memBackend(t))

	_, err := c.Execute(context.Background(), alice, func(env *Env) error {
		env.State().SetUint64([]byte("k"), 1)
		panic("bad contract")
	})
	if err == nil {
		t.Fatal("expected error from panicking call")
	}
	c.View(context.Background(), alice, func(env *Env) error {
		if env.State().Get([]byte("k")) != nil {
			t.Error("write of panicking call survived")
		}
		return nil
	})
}

func TestCallDepthLimit(t *testing.T) {
	c := newTestChain(t, memBackend(t))

	var recurse func(env *Env) error
	recurse = func(env *Env) error {
		return env.From(contract).Try(recurse)
	}
	_, err := c.Execute(context.Background(), alice, recurse)
	if !errors.Is(err, ErrCallDepth) {
		t.Errorf("err = %v, want ErrCallDepth", err)
	}
}

func TestFromChangesSender(t *testing.T) {
	c := newTestChain(t, memBackend(t))

	c.Execute(context.Background(), alice, func(env *Env) error {
		sub := env.From(contract)
		if sub.Sender != contract || sub.Origin != alice {
			t.Errorf("sub frame sender=%s origin=%s", sub.Sender.Hex(), sub.Origin.Hex())
		}
		return nil
	})
}

func TestSequencePersistsAcrossRestart(t *testing.T) {
	backend, err := storage.NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open pebble: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	c := newTestChain(t, backend)
	for i := 0; i < 3; i++ {
		if _, err := c.Execute(context.Background(), alice, func(env *Env) error {
			env.State().SetUint64([]byte("n"), uint64(i))
			return nil
		}); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}
	root := c.Root()
	if root == (common.Hash{}) {
		t.Error("root is zero after commits")
	}

	restarted := newTestChain(t, backend)
	if restarted.Seq() != 3 {
		t.Errorf("seq after restart = %d, want 3", restarted.Seq())
	}
	if restarted.Root() != root {
		t.Errorf("root after restart = %s, want %s", restarted.Root().Hex(), root.Hex())
	}
}

func TestSubscribeReceivesReceipts(t *testing.T) {
	c := newTestChain(t, memBackend(t))
	ch, cancel := c.Subscribe(4)
	defer cancel()

	c.Execute(context.Background(), alice, func(env *Env) error { return nil })
	c.Execute(context.Background(), alice, func(env *Env) error { return errBoom })

	first, second := <-ch, <-ch
	if !first.Success || first.Seq != 1 {
		t.Errorf("first receipt = %+v", first)
	}
	if second.Success || second.Error == "" {
		t.Errorf("second receipt = %+v, want failure", second)
	}
}

func TestDeployRejectsDuplicate(t *testing.T) {
	c := newTestChain(t, memBackend(t))
	if err := c.Deploy(contract, struct{}{}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if err := c.Deploy(contract, struct{}{}); !errors.Is(err, ErrContractExists) {
		t.Errorf("err = %v, want ErrContractExists", err)
	}
	if _, err := c.Contract(alice); !errors.Is(err, ErrContractNotFound) {
		t.Errorf("err = %v, want ErrContractNotFound", err)
	}
}

func TestStateIterateSeesPendingWrites(t *testing.T) {
	c := newTestChain(t, memBackend(t))
	ctx := context.Background()

	if _, err := c.Execute(ctx, alice, func(env *Env) error {
		st := env.State()
		st.Set([]byte("p/a"), []byte("1"))
		st.Set([]byte("p/b"), []byte("2"))
		st.Set([]byte("p/c"), []byte("3"))
		st.Set([]byte("q/a"), []byte("x"))
		return nil
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	c.View(ctx, alice, func(env *Env) error {
		st := env.State()
		st.Delete([]byte("p/b"))
		st.Set([]byte("p/c"), []byte("33"))
		st.Set([]byte("p/d"), []byte("4"))

		var got []string
		st.Iterate([]byte("p/"), func(k, v []byte) bool {
			got = append(got, string(k)+"="+string(v))
			return true
		})
		want := []string{"p/a=1", "p/c=33", "p/d=4"}
		if len(got) != len(want) {
			t.Fatalf("Iterate = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Iterate[%d] = %s, want %s", i, got[i], want[i])
			}
		}

		count := 0
		st.Iterate([]byte("p/"), func(_, _ []byte) bool {
			count++
			return false
		})
		if count != 1 {
			t.Errorf("Iterate visited %d keys after stop, want 1", count)
		}
		return nil
	})
}
