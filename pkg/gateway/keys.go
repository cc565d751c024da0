package gateway

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Gateway key schema, all under the gateway address:
//
//   {gw}/init             → initialized flag
//   {gw}/admin            → administrator
//   {gw}/pendingAdmin     → administrator awaiting acceptance
//   {gw}/treasury         → fee recipient
//   {gw}/feeBps           → fee rate (uint64)
//   {gw}/router           → swap mechanism reference
//   {gw}/asset:{addr}     → supported flag
//   {gw}/nextOrderId      → order id counter (uint64)
//   {gw}/order:{id}       → Order (JSON), id zero-padded to 20 digits

func fieldKey(gw common.Address, field string) []byte {
	return []byte(fmt.Sprintf("%s/%s", gw.Hex(), field))
}

func assetKey(gw, asset common.Address) []byte {
	return []byte(fmt.Sprintf("%s/asset:%s", gw.Hex(), asset.Hex()))
}

func orderPrefix(gw common.Address) []byte {
	return []byte(fmt.Sprintf("%s/order:", gw.Hex()))
}

func orderKey(gw common.Address, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", orderPrefix(gw), id))
}
