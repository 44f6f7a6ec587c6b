// Package genesis builds the fixed genesis block every node starts from.
//
// The distilled spec leaves the exact genesis numbers to the implementer;
// the C++ original this was distilled from (original_source/src/core/core.cpp,
// Core::getGenesisBlock) hard-codes one specific scenario, which is also
// spec.md §8 Scenario 1 verbatim: a single block at depth 0 whose only
// transaction credits a fixed recipient address with 2^256-1.
package genesis

import (
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// RecipientAddress is the account credited by the genesis transaction.
const RecipientAddress = "49cfqVfB1gTGw5XZSu6nZDrntLr1"

// Timestamp is the fixed genesis timestamp, matching the original
// implementation's 2020-03-09T21:33:37Z.
const Timestamp uint32 = 1583789617

// EmissionValue is the fixed per-block mining reward credited to the
// coinbase account once per accepted block, in addition to collected fees.
var EmissionValue = types.NewBalanceFromUint64(5_000_000)

// Block constructs the genesis block. It is deterministic and pure: calling
// it twice yields byte-identical blocks.
func Block() types.Block {
	recipient, err := types.AddressFromString(RecipientAddress)
	if err != nil {
		// The recipient address is a compile-time constant; a decode
		// failure here means the constant itself is wrong.
		panic("genesis: invalid recipient address constant: " + err.Error())
	}

	tx := types.Tx{
		From:      types.NullAddress,
		To:        recipient,
		Amount:    types.MaxBalance(),
		Fee:       types.ZeroBalance,
		Timestamp: Timestamp,
		Type:      types.TxTransfer,
	}

	return types.Block{
		Depth:        0,
		PrevHash:     types.ZeroHash,
		Timestamp:    Timestamp,
		Coinbase:     types.NullAddress,
		Transactions: []types.BlockTx{{Tx: tx}},
	}
}
