package rpc

import "github.com/ledgerforge/corechain/internal/blockchain/types"

// signRequest is the wire shape of types.Sign: hex strings instead of raw
// bytes, since JSON has no byte-slice literal of its own.
type signRequest struct {
	PublicKey string `json:"public_key" validate:"required,hexadecimal"`
	R         string `json:"r" validate:"required,hexadecimal"`
	S         string `json:"s" validate:"required,hexadecimal"`
}

// txRequest is the payload a wallet posts to /v1/tx/submit.
type txRequest struct {
	From      string      `json:"from" validate:"required"`
	To        string      `json:"to" validate:"required"`
	Amount    string      `json:"amount" validate:"required,numeric"`
	Fee       string      `json:"fee" validate:"required,numeric"`
	Timestamp uint32      `json:"timestamp" validate:"required"`
	Type      types.TxType `json:"type"`
	Data      string      `json:"data,omitempty" validate:"omitempty,hexadecimal"`
	Sign      signRequest `json:"sign" validate:"required"`
}

func (req txRequest) toTx() (types.Tx, error) {
	from, err := types.AddressFromString(req.From)
	if err != nil {
		return types.Tx{}, err
	}
	to, err := types.AddressFromString(req.To)
	if err != nil {
		return types.Tx{}, err
	}
	amount, err := types.NewBalanceFromString(req.Amount)
	if err != nil {
		return types.Tx{}, err
	}
	fee, err := types.NewBalanceFromString(req.Fee)
	if err != nil {
		return types.Tx{}, err
	}

	var data []byte
	if req.Data != "" {
		data, err = decodeHex(req.Data)
		if err != nil {
			return types.Tx{}, err
		}
	}

	pubKey, err := decodeHex(req.Sign.PublicKey)
	if err != nil {
		return types.Tx{}, err
	}
	r, err := decodeHex(req.Sign.R)
	if err != nil {
		return types.Tx{}, err
	}
	s, err := decodeHex(req.Sign.S)
	if err != nil {
		return types.Tx{}, err
	}

	return types.Tx{
		From:      from,
		To:        to,
		Amount:    amount,
		Fee:       fee,
		Timestamp: req.Timestamp,
		Type:      req.Type,
		Data:      data,
		Sign: types.Sign{
			PublicKey: pubKey,
			R:         r,
			S:         s,
		},
	}, nil
}

// submitResponse reports the admission outcome of a submitted transaction.
type submitResponse struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

// txView is the read-only rendering of a transaction, with addresses
// resolved to a human name where the nameservice knows one.
type txView struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	FromName  string `json:"from_name,omitempty"`
	To        string `json:"to"`
	ToName    string `json:"to_name,omitempty"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
	Timestamp uint32 `json:"timestamp"`
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
}

// blockView is the read-only rendering of a block.
type blockView struct {
	Hash         string   `json:"hash"`
	Depth        uint64   `json:"depth"`
	PrevHash     string   `json:"prev_hash"`
	Timestamp    uint32   `json:"timestamp"`
	Coinbase     string   `json:"coinbase"`
	CoinbaseName string   `json:"coinbase_name,omitempty"`
	Transactions []txView `json:"transactions"`
}

// balanceView answers a /v1/accounts/:account lookup.
type balanceView struct {
	Account string `json:"account"`
	Name    string `json:"name,omitempty"`
	Balance string `json:"balance"`
}

// statusView answers a /v1/tx/status/:hash lookup.
type statusView struct {
	Hash    string `json:"hash"`
	Known   bool   `json:"known"`
	Code    string `json:"code,omitempty"`
	Action  string `json:"action,omitempty"`
	GasLeft uint64 `json:"gas_left,omitempty"`
	Message string `json:"message,omitempty"`
	InBlock string `json:"in_block,omitempty"`
}
