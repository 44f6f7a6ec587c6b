package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the address for this wallet's key",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	addr := types.AddressFromPublicKey(crypto.FromECDSAPub(&privateKey.PublicKey))
	fmt.Println(addr)
}
