package rpc

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ledgerforge/corechain/internal/core"
	"github.com/ledgerforge/corechain/internal/events"
	"github.com/ledgerforge/corechain/internal/nameservice"
	"github.com/ledgerforge/corechain/internal/web"
)

// Config bundles the dependencies Routes needs to build Handlers, the
// same shape the teacher's public/routes.go Config carries.
type Config struct {
	Log  *zap.SugaredLogger
	Core *core.Core
	NS   *nameservice.NameService
	Evts *events.Events
}

// Routes binds every v1 endpoint onto app, grounded on the teacher's
// public/routes.go path layout, narrowed to this chain's hash-keyed
// blocks and transactions instead of account-keyed ones.
func Routes(app *web.App, cfg Config) {
	h := New(cfg.Log, cfg.Core, cfg.NS, cfg.Evts)

	const version = "v1"

	app.Handle(http.MethodGet, version, "/events", h.Events)
	app.Handle(http.MethodPost, version, "/tx/submit", h.SubmitTransaction)
	app.Handle(http.MethodGet, version, "/tx/status/:hash", h.TransactionStatus)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", h.Mempool)
	app.Handle(http.MethodGet, version, "/accounts/:account", h.Balance)
	app.Handle(http.MethodGet, version, "/blocks/top", h.TopBlock)
	app.Handle(http.MethodGet, version, "/blocks/:hash", h.BlockByHash)
}
