// Command node runs one participant in the ledger's peer-to-peer network:
// it opens (or creates) a local chain store, listens for peer connections,
// serves the v1 RPC API, and periodically assembles and seals blocks from
// whatever the mempool is holding.
//
// Grounded on app/services/node/main.go's run() shape: conf/v3 config
// struct, ASCII banner, nameservice load, event-handler closure wired
// into every subsystem, debug mux on its own port, and a select on
// serverErrors/shutdown for graceful termination.
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/ledgerforge/corechain/internal/blockchain/genesis"
	"github.com/ledgerforge/corechain/internal/blockchain/types"
	"github.com/ledgerforge/corechain/internal/core"
	"github.com/ledgerforge/corechain/internal/events"
	"github.com/ledgerforge/corechain/internal/logger"
	"github.com/ledgerforge/corechain/internal/nameservice"
	"github.com/ledgerforge/corechain/internal/peer"
	"github.com/ledgerforge/corechain/internal/rpc"
	"github.com/ledgerforge/corechain/internal/web"
	"github.com/ledgerforge/corechain/internal/web/mid"
)

var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Peer struct {
			Port       string   `conf:"default:9080"`
			PublicPort int      `conf:"default:9080"`
			MaxPeers   int      `conf:"default:32"`
			KnownPeers []string `conf:"default:"`
		}
		State struct {
			MinerName      string        `conf:"default:miner1"`
			DBPath         string        `conf:"default:zblock/blocks.db"`
			SelectStrategy string        `conf:"default:fee"`
			MineInterval   time.Duration `conf:"default:15s"`
			MaxTxPerBlock  int           `conf:"default:100"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "permissionless EVM-compatible ledger node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}
	for addr, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", addr)
	}

	path := fmt.Sprintf("%s%s.ecdsa", cfg.NameService.Folder, cfg.State.MinerName)
	minerKey, err := gethcrypto.LoadECDSA(path)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	minerAddr := types.AddressFromPublicKey(gethcrypto.FromECDSAPub(&minerKey.PublicKey))

	// =========================================================================
	// Event Bus

	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// =========================================================================
	// Core (chain store + state + executor + mempool)

	c, err := core.New(core.Config{
		DataPath:  cfg.State.DBPath,
		NodeAddr:  minerAddr,
		Strategy:  cfg.State.SelectStrategy,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing core: %w", err)
	}
	defer c.Close()

	if _, ok := c.FindBlock(genesis.Block().Hash()); !ok {
		if err := c.TryAddBlock(genesis.Block()); err != nil {
			return fmt.Errorf("seeding genesis block: %w", err)
		}
	}

	// =========================================================================
	// Peer networking

	peerSrv := peer.NewServer(cfg.Peer.Port, uint16(cfg.Peer.PublicPort), cfg.Peer.MaxPeers, ledgerAdapter{c}, ev)
	c.SetPeersFn(peerSrv.KnownPeers)
	c.SubscribeBlocks(peerSrv.BroadcastBlock)
	c.SubscribeTransactions(peerSrv.BroadcastTransaction)

	if err := peerSrv.Start(); err != nil {
		return fmt.Errorf("starting peer server: %w", err)
	}
	defer peerSrv.Stop()

	for _, host := range cfg.Peer.KnownPeers {
		go func(host string) {
			if err := peerSrv.Connect(host); err != nil {
				ev("peer: connect to %s failed: %v", host, err)
			}
		}(host)
	}

	// =========================================================================
	// Mining loop

	minerShutdown := make(chan struct{})
	defer close(minerShutdown)
	go mineLoop(c, peerSrv, minerAddr, cfg.State.MineInterval, cfg.State.MaxTxPerBlock, ev, minerShutdown)

	// =========================================================================
	// Debug service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)
	debugMux := debugMux(build, log)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Shutdown support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// RPC (public API) service

	log.Infow("startup", "status", "initializing v1 API support")

	app := web.NewApp(
		shutdown,
		mid.Logger(log),
		mid.Cors("*"),
		mid.Panics(),
	)
	rpc.Routes(app, rpc.Config{Log: log, Core: c, NS: ns, Evts: evts})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      app,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		log.Infow("shutdown", "status", "shutdown websocket channels")
		evts.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// ledgerAdapter narrows *core.Core to session.Ledger: the peer package's
// handshake and sync code only needs AddTransaction's accept/reject
// outcome, not the StatusCode the RPC layer also wants from it.
type ledgerAdapter struct {
	*core.Core
}

func (l ledgerAdapter) AddTransaction(tx types.Tx) error {
	_, err := l.Core.AddTransaction(tx)
	return err
}

// mineLoop assembles a block from the mempool every interval and tries to
// add it to the chain. There is no proof-of-work here: per the complexity
// stub this implementation carries forward from the original, any node
// may seal the next block at its own Coinbase and broadcast it, and peers
// accept whichever arrives first at a given depth.
func mineLoop(c *core.Core, peerSrv *peer.Server, coinbase types.Address, interval time.Duration, maxTxs int, ev func(string, ...any), shutdown <-chan struct{}) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			block := c.AssembleBlock(coinbase, uint32(time.Now().Unix()), maxTxs)
			if len(block.Transactions) == 0 {
				continue
			}
			if err := c.TryAddBlock(block); err != nil {
				ev("mining: failed to add assembled block: %v", err)
				continue
			}
			ev("mining: sealed block at depth %d with %d tx", block.Depth, len(block.Transactions))
			peerSrv.BroadcastBlock(block)
		}
	}
}

// debugMux returns a mux with the standard library debug endpoints plus a
// build-version handler, kept from handlers.DebugMux's pprof/expvar wiring.
func debugMux(build string, log *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	mux.HandleFunc("/debug/build", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, build)
	})

	return mux
}
