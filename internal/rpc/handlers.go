// Package rpc adapts internal/core.Core to the JSON/websocket surface a
// wallet or block explorer talks to, the role
// app/services/node/handlers/v1/public/public.go plays for the teacher's
// storage.Account/state.State domain. Handlers here carry the same shape
// (Log, NS, WS, Evts) plus a Core in place of State, and trade the
// teacher's uint-based Tx/SignedTx wire types for hex/decimal-string
// encodings of types.Tx's Address/Balance/Sign fields.
package rpc

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
	"github.com/ledgerforge/corechain/internal/core"
	"github.com/ledgerforge/corechain/internal/events"
	"github.com/ledgerforge/corechain/internal/nameservice"
	"github.com/ledgerforge/corechain/internal/web"
	"github.com/ledgerforge/corechain/internal/web/errs"
)

// Handlers holds the dependencies every route method needs.
type Handlers struct {
	Log      *zap.SugaredLogger
	Core     *core.Core
	NS       *nameservice.NameService
	WS       websocket.Upgrader
	Evts     *events.Events
	validate *validator.Validate
}

// New constructs a Handlers with its own validator instance, mirroring
// Routes' construction of the teacher's public.Handlers literal.
func New(log *zap.SugaredLogger, c *core.Core, ns *nameservice.NameService, evts *events.Events) Handlers {
	return Handlers{
		Log:      log,
		Core:     c,
		NS:       ns,
		WS:       websocket.Upgrader{},
		Evts:     evts,
		validate: validator.New(),
	}
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

func encodeHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

func (h Handlers) renderTx(tx types.Tx) txView {
	return txView{
		Hash:      tx.Hash().String(),
		From:      tx.From.String(),
		FromName:  h.NS.Lookup(tx.From),
		To:        tx.To.String(),
		ToName:    h.NS.Lookup(tx.To),
		Amount:    tx.Amount.String(),
		Fee:       tx.Fee.String(),
		Timestamp: tx.Timestamp,
		Type:      tx.Type.String(),
		Data:      encodeHex(tx.Data),
	}
}

func (h Handlers) renderBlock(block types.Block) blockView {
	txs := make([]txView, len(block.Transactions))
	for i, btx := range block.Transactions {
		txs[i] = h.renderTx(btx.Tx)
	}
	return blockView{
		Hash:         block.Hash().String(),
		Depth:        block.Depth,
		PrevHash:     block.PrevHash.String(),
		Timestamp:    block.Timestamp,
		Coinbase:     block.Coinbase.String(),
		CoinbaseName: h.NS.Lookup(block.Coinbase),
		Transactions: txs,
	}
}

// SubmitTransaction decodes, validates and admits a client transaction to
// the mempool, the role SubmitWalletTransaction plays against
// State.SubmitWalletTransaction in the teacher's public.go.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, _ := web.GetValues(ctx)

	var req txRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := h.validate.Struct(req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx, err := req.toTx()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "from", tx.From, "to", tx.To, "amount", tx.Amount)

	code, err := h.Core.AddTransaction(tx)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Evts.Send(fmt.Sprintf("tx accepted: %s", tx.Hash()))

	resp := submitResponse{Hash: tx.Hash().String(), Status: code.String()}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balance returns the current balance for the address named by the
// :account path parameter, the role Accounts plays for a single account
// lookup in the teacher's public.go.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	raw := web.Param(r, "account")
	addr, err := types.AddressFromString(raw)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("bad account %q: %w", raw, err), http.StatusBadRequest)
	}

	bal := h.Core.GetBalance(addr)
	resp := balanceView{Account: addr.String(), Name: h.NS.Lookup(addr), Balance: bal.String()}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// TopBlock returns the chain tip.
func (h Handlers) TopBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.renderBlock(h.Core.TopBlock()), http.StatusOK)
}

// BlockByHash looks a block up by its hash, the role BlocksByAccount plays
// for block lookup in the teacher's public.go, narrowed to lookup-by-hash
// since this chain keys blocks by hash rather than by account.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	raw := web.Param(r, "hash")
	hash, err := types.HashFromString(raw)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("bad hash %q: %w", raw, err), http.StatusBadRequest)
	}

	block, ok := h.Core.FindBlock(hash)
	if !ok {
		return errs.NewTrusted(fmt.Errorf("block %s not found", raw), http.StatusNotFound)
	}

	return web.Respond(ctx, w, h.renderBlock(block), http.StatusOK)
}

// TransactionStatus reports whether a transaction was admitted, mined, and
// with what outcome, the role Mempool plays for transaction lookup in the
// teacher's public.go, extended with the durable post-execution status
// spec §7 introduces.
func (h Handlers) TransactionStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	raw := web.Param(r, "hash")
	hash, err := types.HashFromString(raw)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("bad hash %q: %w", raw, err), http.StatusBadRequest)
	}

	resp := statusView{Hash: hash.String()}

	if status, ok := h.Core.GetTransactionStatus(hash); ok {
		resp.Known = true
		resp.Code = status.Code.String()
		resp.Action = status.Action.String()
		resp.GasLeft = status.GasLeft
		resp.Message = status.Message
	}

	if block, ok := h.Core.FindTransaction(hash); ok {
		resp.InBlock = block.Hash().String()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool lists every transaction currently pending, the role Mempool
// plays in the teacher's public.go over State.RetrieveMempool.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pending := h.Core.PendingTransactions()
	out := make([]txView, len(pending))
	for i, btx := range pending {
		out[i] = h.renderTx(btx.Tx)
	}
	return web.Respond(ctx, w, out, http.StatusOK)
}

// Events streams the node's event feed over a websocket, kept in the same
// shape as the teacher's public.go Events handler: acquire a per-trace
// channel from Evts, relay every message, and ping on an idle ticker so
// the client's connection doesn't get reaped by an intermediate proxy.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, ok := web.GetValues(ctx)
	if !ok {
		return errs.NewTrusted(fmt.Errorf("web value missing from context"), http.StatusInternalServerError)
	}

	h.WS.CheckOrigin = func(*http.Request) bool { return true }

	conn, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
