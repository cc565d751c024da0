package gateway

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/storage"
)

// NextOrderID returns the id the next settlement will receive.
func (g *Gateway) NextOrderID(env *chain.Env) uint64 {
	return env.State().GetUint64(fieldKey(g.address, "nextOrderId"))
}

// appendOrder stores o under the next id and advances the counter.
func (g *Gateway) appendOrder(env *chain.Env, o Order) (uint64, error) {
	st := env.State()
	id := g.NextOrderID(env)
	if err := st.SetJSON(orderKey(g.address, id), o); err != nil {
		return 0, fmt.Errorf("failed to store order %d: %w", id, err)
	}
	st.SetUint64(fieldKey(g.address, "nextOrderId"), id+1)
	return id, nil
}

// GetOrderInfo returns the order stored under id. Ids never issued yield a
// zero record (zero Creator, zero Amount and Rate).
func (g *Gateway) GetOrderInfo(env *chain.Env, id uint64) Order {
	var o Order
	found, err := env.State().GetJSON(orderKey(g.address, id), &o)
	if err != nil {
		g.logger.Warnw("order_decode_failed", "order_id", id, "error", err)
	}
	if !found || err != nil {
		o = Order{}
	}
	if o.Amount == nil {
		o.Amount = new(big.Int)
	}
	if o.Rate == nil {
		o.Rate = new(big.Int)
	}
	return o
}

// OrderExists reports whether id has been issued.
func (g *Gateway) OrderExists(env *chain.Env, id uint64) bool {
	return g.GetOrderInfo(env, id).Creator != (common.Address{})
}

// OrderRecord is an order together with its id.
type OrderRecord struct {
	ID uint64 `json:"id"`
	Order
}

// OrderFilter selects orders for ListOrders. A zero Creator matches every
// order; Limit <= 0 means no limit.
type OrderFilter struct {
	Creator common.Address
	FromID  uint64
	Limit   int
}

// ListOrders returns matching orders in ascending id order.
func (g *Gateway) ListOrders(env *chain.Env, f OrderFilter) []OrderRecord {
	prefix := orderPrefix(g.address)
	out := make([]OrderRecord, 0)
	env.State().Iterate(prefix, func(key, value []byte) bool {
		id, err := strconv.ParseUint(string(bytes.TrimPrefix(key, prefix)), 10, 64)
		if err != nil || id < f.FromID {
			return true
		}
		var o Order
		if err := storage.DecodeJSON(value, &o); err != nil {
			g.logger.Warnw("order_decode_failed", "order_id", id, "error", err)
			return true
		}
		if f.Creator != (common.Address{}) && o.Creator != f.Creator {
			return true
		}
		out = append(out, OrderRecord{ID: id, Order: o})
		return f.Limit <= 0 || len(out) < f.Limit
	})
	return out
}
