package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergate/pkg/storage"
	"github.com/uhyunpark/hypergate/pkg/util"
)

var seqKey = []byte("chain/seq")

// Config holds optional collaborators of a Chain.
type Config struct {
	Clock  util.Clock
	Logger *zap.SugaredLogger
	WAL    storage.WAL
}

// Chain serializes calls against one StateDB. Each call is atomic: it
// commits every write on success and none on failure.
type Chain struct {
	mu    sync.Mutex // one call at a time
	state *StateDB
	seq   uint64

	regMu     sync.RWMutex
	contracts map[common.Address]any

	subMu sync.RWMutex
	subs  map[int]chan Receipt
	subID int

	clock  util.Clock
	logger *zap.SugaredLogger
	wal    storage.WAL

	committedCounter metric.Int64Counter
	revertedCounter  metric.Int64Counter
}

func New(backend storage.Backend, cfg Config) (*Chain, error) {
	c := &Chain{
		state:     NewStateDB(backend),
		contracts: make(map[common.Address]any),
		subs:      make(map[int]chan Receipt),
		clock:     cfg.Clock,
		logger:    util.OrNop(cfg.Logger),
		wal:       cfg.WAL,
	}
	if c.clock == nil {
		c.clock = util.RealClock{}
	}
	if c.wal == nil {
		c.wal = storage.NewNopWAL()
	}

	seq, err := backend.Get(seqKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load call sequence: %w", err)
	}
	c.seq = storage.BytesUint64(seq)

	meter := otel.Meter("chain")
	c.committedCounter, _ = meter.Int64Counter("chain.calls.committed",
		metric.WithDescription("Number of calls committed"),
		metric.WithUnit("{call}"))
	c.revertedCounter, _ = meter.Int64Counter("chain.calls.reverted",
		metric.WithDescription("Number of calls reverted"),
		metric.WithUnit("{call}"))

	return c, nil
}

// Deploy registers contract under addr.
func (c *Chain) Deploy(addr common.Address, contract any) error {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	if _, exists := c.contracts[addr]; exists {
		return fmt.Errorf("%w: %s", ErrContractExists, addr.Hex())
	}
	c.contracts[addr] = contract
	c.logger.Infow("contract_deployed", "address", addr.Hex(), "type", fmt.Sprintf("%T", contract))
	return nil
}

// Contract resolves a deployed contract by address.
func (c *Chain) Contract(addr common.Address) (any, error) {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	contract, ok := c.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, addr.Hex())
	}
	return contract, nil
}

// Seq returns the sequence number of the last committed call.
func (c *Chain) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Root returns the last committed state root.
func (c *Chain) Root() common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Root()
}

func (c *Chain) newEnv(ctx context.Context, sender common.Address, seq uint64) *Env {
	return &Env{
		ctx:    ctx,
		chain:  c,
		Sender: sender,
		Origin: sender,
		Time:   uint64(c.clock.Now().Unix()),
		Seq:    seq,
	}
}

// Execute runs fn as one atomic call on behalf of sender. The returned
// receipt carries the logs of a successful call; on failure the state is
// left exactly as before and the error is returned.
func (c *Chain) Execute(ctx context.Context, sender common.Address, fn func(env *Env) error) (Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.seq + 1
	env := c.newEnv(ctx, sender, seq)

	var (
		root common.Hash
		logs []Log
	)
	err := env.Try(fn)
	if err == nil {
		c.state.SetUint64(seqKey, seq)
		logs = c.state.Logs()
		root, err = c.state.Commit()
	}

	receipt := Receipt{
		Seq:     seq,
		Sender:  sender,
		Time:    env.Time,
		Success: err == nil,
	}
	if err != nil {
		c.state.Discard()
		receipt.Seq = 0
		receipt.Error = err.Error()
		c.revertedCounter.Add(ctx, 1)
		c.logger.Warnw("call_reverted", "sender", sender.Hex(), "error", err.Error())
	} else {
		c.seq = seq
		receipt.Root = root
		receipt.Logs = logs
		c.committedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Int("logs", len(logs))))
		c.logger.Debugw("call_committed", "seq", seq, "sender", sender.Hex(), "root", root.Hex())
	}

	c.record(receipt)
	c.publish(receipt)
	return receipt, err
}

// View runs fn against the current state and discards every write.
func (c *Chain) View(ctx context.Context, sender common.Address, fn func(env *Env) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.state.Discard()
	return c.newEnv(ctx, sender, c.seq).Try(fn)
}

func (c *Chain) record(r Receipt) {
	line, err := json.Marshal(r)
	if err != nil {
		c.logger.Warnw("receipt_encode_failed", "error", err)
		return
	}
	c.wal.Append(string(line))
}

// Subscribe returns a channel receiving every receipt, committed or not.
// Slow subscribers lose receipts rather than block calls.
func (c *Chain) Subscribe(buffer int) (<-chan Receipt, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.subID
	c.subID++
	ch := make(chan Receipt, buffer)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Chain) publish(r Receipt) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for id, ch := range c.subs {
		select {
		case ch <- r:
		default:
			c.logger.Warnw("receipt_dropped", "subscriber", id, "seq", r.Seq)
		}
	}
}
