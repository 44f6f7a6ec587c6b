package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/ledgerforge/corechain/internal/blockchain/signature"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

var (
	sendTo        string
	sendAmount    uint64
	sendFee       uint64
	sendData      []byte
	sendTimestamp uint32
)

// signRequest and txRequest mirror internal/rpc's models.go wire shape.
type signRequest struct {
	PublicKey string `json:"public_key"`
	R         string `json:"r"`
	S         string `json:"s"`
}

type txRequest struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Amount    string      `json:"amount"`
	Fee       string      `json:"fee"`
	Timestamp uint32      `json:"timestamp"`
	Type      types.TxType `json:"type"`
	Data      string      `json:"data,omitempty"`
	Sign      signRequest `json:"sign"`
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a transfer to the node",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendTo, "to", "t", "", "Recipient address.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.Flags().Uint64VarP(&sendAmount, "amount", "v", 0, "Amount to send.")
	sendCmd.Flags().Uint64VarP(&sendFee, "fee", "f", 0, "Fee offered to the miner.")
	sendCmd.Flags().BytesHexVarP(&sendData, "data", "d", nil, "Hex-encoded call data.")
	sendCmd.Flags().Uint32VarP(&sendTimestamp, "timestamp", "s", 0, "Unix timestamp; defaults to now if zero.")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	from := types.AddressFromPublicKey(crypto.FromECDSAPub(&privateKey.PublicKey))
	to, err := types.AddressFromString(sendTo)
	if err != nil {
		log.Fatal(err)
	}

	ts := sendTimestamp
	if ts == 0 {
		ts = uint32(time.Now().Unix())
	}

	tx := types.Tx{
		From:      from,
		To:        to,
		Amount:    types.NewBalanceFromUint64(sendAmount),
		Fee:       types.NewBalanceFromUint64(sendFee),
		Timestamp: ts,
		Type:      types.TxTransfer,
		Data:      sendData,
	}

	sig, err := signature.Sign(tx, privateKey)
	if err != nil {
		log.Fatal(err)
	}

	req := txRequest{
		From:      tx.From.String(),
		To:        tx.To.String(),
		Amount:    tx.Amount.String(),
		Fee:       tx.Fee.String(),
		Timestamp: tx.Timestamp,
		Type:      tx.Type,
		Data:      hexEncode(tx.Data),
		Sign: signRequest{
			PublicKey: hexEncode(sig.PublicKey),
			R:         hexEncode(sig.R),
			S:         hexEncode(sig.S),
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", nodeURL), "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatal(err)
	}
	fmt.Println(out)
}

func hexEncode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}
