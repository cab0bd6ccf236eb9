package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key layout. String prefixes keep the keyspace debuggable with
// standard tooling.
const (
	prefixOrder     = "ord:" // ord:{id, zero-padded} -> JSON order
	prefixBalance   = "bal:" // bal:{address}:{token} -> decimal amount
	prefixWhitelist = "wl:"  // wl:{token} -> 1
	keyOrderCounter = "ordctr"
)

// orderKey returns the key for an order record.
// IDs are zero-padded so lexicographic key order matches numeric order,
// which lets a single prefix scan rebuild the arena in creation order.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

func orderPrefix() []byte {
	return []byte(prefixOrder)
}

// balanceKey returns the key for one user's balance of one token.
// Format: "bal:{address}:{token}"
func balanceKey(user, token common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, user.Hex(), token.Hex()))
}

// whitelistKey returns the key marking a token as allowed.
func whitelistKey(token common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixWhitelist, token.Hex()))
}

func whitelistPrefix() []byte {
	return []byte(prefixWhitelist)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
