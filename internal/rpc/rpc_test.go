package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/ledgerforge/corechain/internal/blockchain/genesis"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
	"github.com/ledgerforge/corechain/internal/core"
	"github.com/ledgerforge/corechain/internal/events"
	"github.com/ledgerforge/corechain/internal/nameservice"
	"github.com/ledgerforge/corechain/internal/web"
)

func noopEvHandler(string, ...any) {}

func newTestApp(t *testing.T) (*web.App, *core.Core) {
	t.Helper()

	dir := t.TempDir()
	c, err := core.New(core.Config{DataPath: dir, Clean: true, NodeAddr: types.Address{1}, EvHandler: noopEvHandler})
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.TryAddBlock(genesis.Block()); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("nameservice.New: %v", err)
	}

	log := zap.NewNop().Sugar()
	evts := events.New()
	t.Cleanup(evts.Shutdown)

	app := web.NewApp(make(chan os.Signal, 1))
	Routes(app, Config{Log: log, Core: c, NS: ns, Evts: evts})

	return app, c
}

func doJSON(t *testing.T, app *web.App, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)
	return w
}

func TestBalanceReturnsGenesisRecipientBalance(t *testing.T) {
	app, _ := newTestApp(t)

	w := doJSON(t, app, http.MethodGet, "/v1/accounts/"+genesis.RecipientAddress, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp balanceView
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Balance == "0" {
		t.Fatalf("expected a nonzero genesis balance, got %q", resp.Balance)
	}
}

func TestBalanceRejectsMalformedAccount(t *testing.T) {
	app, _ := newTestApp(t)

	w := doJSON(t, app, http.MethodGet, "/v1/accounts/not-an-address", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTopBlockReflectsSeededGenesis(t *testing.T) {
	app, c := newTestApp(t)

	w := doJSON(t, app, http.MethodGet, "/v1/blocks/top", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp blockView
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Hash != c.TopBlock().Hash().String() {
		t.Fatalf("hash = %s, want %s", resp.Hash, c.TopBlock().Hash().String())
	}
}

func TestBlockByHashUnknownReturnsNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	w := doJSON(t, app, http.MethodGet, "/v1/blocks/"+types.Hash{}.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSubmitTransactionRejectsInvalidShape(t *testing.T) {
	app, _ := newTestApp(t)

	req := txRequest{From: "", To: "", Amount: "", Fee: ""}
	w := doJSON(t, app, http.MethodPost, "/v1/tx/submit", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestSubmitTransactionAcceptsSignedTransfer(t *testing.T) {
	app, c := newTestApp(t)

	key, err := gethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := types.AddressFromPublicKey(gethcrypto.FromECDSAPub(&key.PublicKey))

	reward := types.Block{
		Depth:     c.TopBlock().Depth + 1,
		PrevHash:  c.TopBlock().Hash(),
		Timestamp: 1,
		Coinbase:  from,
	}
	if err := c.TryAddBlock(reward); err != nil {
		t.Fatalf("mine reward block: %v", err)
	}

	to, err := types.AddressFromString(genesis.RecipientAddress)
	if err != nil {
		t.Fatalf("genesis address: %v", err)
	}

	tx := types.Tx{From: from, To: to, Amount: types.NewBalanceFromUint64(10), Fee: types.NewBalanceFromUint64(1), Timestamp: 2, Type: types.TxTransfer}
	hash := tx.Hash()
	sig, err := gethcrypto.Sign(hash[:], key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := txRequest{
		From:      from.String(),
		To:        to.String(),
		Amount:    tx.Amount.String(),
		Fee:       tx.Fee.String(),
		Timestamp: tx.Timestamp,
		Type:      tx.Type,
		Sign: signRequest{
			PublicKey: encodeHex(gethcrypto.FromECDSAPub(&key.PublicKey)),
			R:         encodeHex(sig[:32]),
			S:         encodeHex(sig[32:64]),
		},
	}

	w := doJSON(t, app, http.MethodPost, "/v1/tx/submit", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Hash != tx.Hash().String() {
		t.Fatalf("hash = %s, want %s", resp.Hash, tx.Hash().String())
	}
}
