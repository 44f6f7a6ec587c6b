package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// balanceResponse mirrors internal/rpc's balanceView wire shape.
type balanceResponse struct {
	Account string `json:"account"`
	Name    string `json:"name,omitempty"`
	Balance string `json:"balance"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print this wallet's balance",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}
	addr := types.AddressFromPublicKey(crypto.FromECDSAPub(&privateKey.PublicKey))

	resp, err := http.Get(fmt.Sprintf("%s/v1/accounts/%s", nodeURL, addr))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var bal balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("account %s: %s\n", bal.Account, bal.Balance)
}
