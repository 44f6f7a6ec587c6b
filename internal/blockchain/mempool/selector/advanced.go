package selector

import (
	"sort"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// advancedSelect searches across every sender's cutoff point for the
// combination that maximizes total fee collected, while still respecting
// each sender's submission order. This is the teacher's
// foundation/blockchain/mempool/selector/advanced_tip.go recursion,
// adapted to this fee/hash data model in place of tip/nonce.
var advancedSelect Func = func(m map[types.Address][]types.BlockTx, howMany int) []types.BlockTx {
	for addr := range m {
		if len(m[addr]) > 1 {
			sort.Sort(bySubmitOrder(m[addr]))
		}
	}

	if howMany == -1 {
		total := 0
		for _, txs := range m {
			total += len(txs)
		}
		howMany = total
	}

	at := newAdvancedFees(m, howMany)
	best := at.findBest()

	final := make([]types.BlockTx, 0, howMany)
	for addr, n := range best {
		for i := 0; i < n; i++ {
			final = append(final, m[addr][i])
		}
	}
	return final
}

type advancedFees struct {
	howMany   int
	bestFee   int64
	bestPos   map[types.Address]int
	groupFees map[types.Address][]int64
	groups    []types.Address
}

func newAdvancedFees(m map[types.Address][]types.BlockTx, howMany int) *advancedFees {
	groupFees := make(map[types.Address][]int64)
	groups := make([]types.Address, 0, len(m))

	for addr, group := range m {
		groups = append(groups, addr)
		fees := []int64{0}
		for i, tx := range group {
			if i > howMany {
				break
			}
			fees = append(fees, fees[i]+int64(tx.Fee.Uint64()))
		}
		groupFees[addr] = fees
	}

	return &advancedFees{
		howMany:   howMany,
		groupFees: groupFees,
		groups:    groups,
		bestPos:   make(map[types.Address]int),
	}
}

func (a *advancedFees) findBest() map[types.Address]int {
	a.search(0, a.howMany, map[types.Address]int{}, 0)
	return a.bestPos
}

func (a *advancedFees) search(groupID, left int, current map[types.Address]int, sumFee int64) {
	if sumFee > a.bestFee || (sumFee == a.bestFee && groupID >= len(a.groups)) {
		a.bestFee = sumFee
		a.bestPos = copyPositions(current)
	}

	if groupID >= len(a.groups) {
		return
	}
	addr := a.groups[groupID]

	for pos, fee := range a.groupFees[addr] {
		if left-pos < 0 {
			break
		}
		next := copyPositions(current)
		next[addr] = pos
		a.search(groupID+1, left-pos, next, sumFee+fee)
	}
}

func copyPositions(m map[types.Address]int) map[types.Address]int {
	out := make(map[types.Address]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
