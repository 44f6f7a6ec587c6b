package selector

import (
	"sort"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// tipSelect returns transactions with the best fee while respecting each
// sender's submission order, adapted from the teacher's row-based
// round-robin selection (foundation/blockchain/mempool/selector/tip.go):
// sort each sender's queue by submission order, then repeatedly take one
// transaction per sender (a "row"), sorting each row by fee once it can't
// be taken in full.
var tipSelect Func = func(m map[types.Address][]types.BlockTx, howMany int) []types.BlockTx {
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

	var rows [][]types.BlockTx
	for {
		var row []types.BlockTx
		for addr := range m {
			if len(m[addr]) > 0 {
				row = append(row, m[addr][0])
				m[addr] = m[addr][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	final := make([]types.BlockTx, 0, howMany)
done:
	for _, row := range rows {
		need := howMany - len(final)
		if need <= 0 {
			break done
		}
		if len(row) > need {
			sort.Sort(byFee(row))
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	return final
}
