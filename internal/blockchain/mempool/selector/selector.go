// Package selector provides pluggable transaction-selection strategies
// for the pending pool, mirroring the teacher's
// foundation/blockchain/mempool/selector package structure (a string-keyed
// strategy registry plus byNonce/byFee sort helpers).
package selector

import (
	"fmt"
	"sort"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// StrategyTip is the default strategy: pick transactions with the best
// fee while respecting each sender's submission order.
const StrategyTip = "fee"

// StrategyAdvanced additionally searches across senders for the
// combination of per-sender cutoffs that maximizes total fee collected,
// at the cost of being exponential in the number of distinct senders.
const StrategyAdvanced = "advanced"

var strategies = map[string]Func{
	StrategyTip:      tipSelect,
	StrategyAdvanced: advancedSelect,
}

// Func selects howMany transactions from transactions grouped by sender.
// Every implementation must respect each sender's submission order
// (earlier timestamp first); passing -1 for howMany returns every
// transaction in the strategy's ordering.
type Func func(transactions map[types.Address][]types.BlockTx, howMany int) []types.BlockTx

// Retrieve returns the named strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, ok := strategies[strategy]
	if !ok {
		return nil, fmt.Errorf("selector: strategy %q does not exist", strategy)
	}
	return fn, nil
}

// bySubmitOrder sorts a sender's transactions by ascending timestamp,
// the closest equivalent this data model has to a nonce: each sender's
// transactions must be applied in the order they were created.
type bySubmitOrder []types.BlockTx

func (s bySubmitOrder) Len() int      { return len(s) }
func (s bySubmitOrder) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s bySubmitOrder) Less(i, j int) bool {
	if s[i].Timestamp != s[j].Timestamp {
		return s[i].Timestamp < s[j].Timestamp
	}
	return s[i].Hash().String() < s[j].Hash().String()
}

// byFee sorts transactions by descending fee, stable on ties by hash.
type byFee []types.BlockTx

func (s byFee) Len() int      { return len(s) }
func (s byFee) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byFee) Less(i, j int) bool {
	if s[i].Fee.Less(s[j].Fee) {
		return false
	}
	if s[j].Fee.Less(s[i].Fee) {
		return true
	}
	return s[i].Hash().String() < s[j].Hash().String()
}
