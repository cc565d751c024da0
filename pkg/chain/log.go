package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Log is a notification emitted by a contract during a call. Logs of a
// reverted frame are dropped along with its writes.
type Log struct {
	Contract common.Address    `json:"contract"`
	Name     string            `json:"name"`
	Fields   map[string]string `json:"fields"`
}

// Receipt describes the outcome of one top-level call.
type Receipt struct {
	Seq     uint64         `json:"seq"`
	Sender  common.Address `json:"sender"`
	Time    uint64         `json:"time"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Root    common.Hash    `json:"root"`
	Logs    []Log          `json:"logs"`
}

// Field returns the named field of the first log called name.
func (r Receipt) Field(name, field string) (string, bool) {
	for _, l := range r.Logs {
		if l.Name == name {
			v, ok := l.Fields[field]
			return v, ok
		}
	}
	return "", false
}

// formatField renders a log value the way clients expect to read it back:
// addresses as checksummed hex, integers in base 10.
func formatField(v any) string {
	switch x := v.(type) {
	case common.Address:
		return x.Hex()
	case []common.Address:
		out := "["
		for i, a := range x {
			if i > 0 {
				out += ","
			}
			out += a.Hex()
		}
		return out + "]"
	case *big.Int:
		if x == nil {
			return "0"
		}
		return x.String()
	case common.Hash:
		return x.Hex()
	case time.Time:
		return fmt.Sprintf("%d", x.Unix())
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
