package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
	"github.com/ledgerforge/corechain/internal/peer/pool"
	"github.com/ledgerforge/corechain/internal/peer/protocol"
)

func noopEvHandler(string, ...any) {}

// fakeLedger is a minimal, concurrency-safe Ledger used to exercise the
// session handshake and sync logic without pulling in internal/core.
type fakeLedger struct {
	mu     sync.Mutex
	addr   types.Address
	blocks map[types.Hash]types.Block
	top    types.Block

	addedTx     []types.Tx
	addedBlocks []types.Block
	addErr      error
}

func newFakeLedger(addr types.Address, top types.Block) *fakeLedger {
	l := &fakeLedger{addr: addr, top: top, blocks: make(map[types.Hash]types.Block)}
	l.blocks[top.Hash()] = top
	return l
}

func (l *fakeLedger) TopBlock() types.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.top
}

func (l *fakeLedger) FindBlock(hash types.Hash) (types.Block, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.blocks[hash]
	return b, ok
}

func (l *fakeLedger) TryAddBlock(block types.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.addErr != nil {
		return l.addErr
	}
	l.blocks[block.Hash()] = block
	l.addedBlocks = append(l.addedBlocks, block)
	if block.Depth > l.top.Depth {
		l.top = block
	}
	return nil
}

func (l *fakeLedger) AddTransaction(tx types.Tx) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addedTx = append(l.addedTx, tx)
	return nil
}

func (l *fakeLedger) KnownPeers() []protocol.PeerInfo { return nil }

func (l *fakeLedger) NodeAddress() types.Address { return l.addr }

func listenLocal(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestHandshakeEstablishesBothPools(t *testing.T) {
	ln := listenLocal(t)

	serverLedger := newFakeLedger(types.Address{1}, types.Block{})
	serverPool := pool.New(8)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
		AcceptInbound(conn, serverLedger, serverPool, 9000, noopEvHandler)
	}()

	clientLedger := newFakeLedger(types.Address{2}, types.Block{})
	clientPool := pool.New(8)

	done := make(chan error, 1)
	go func() {
		done <- DialOutbound(ln.Addr().String(), clientLedger, clientPool, 9001, noopEvHandler)
	}()

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server accept")
	}

	// Give the handshake a moment to land in both pools before tearing the
	// connection down to unblock the (otherwise infinite) serve() loops.
	time.Sleep(50 * time.Millisecond)
	if !clientPool.Has(ln.Addr().String()) {
		t.Fatal("client pool missing server peer after handshake")
	}
	if !serverPool.Has(serverConn.RemoteAddr().String()) {
		t.Fatal("server pool missing client peer after handshake")
	}
	serverConn.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("DialOutbound: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to finish")
	}
}

func TestDialOutboundRejectedWhenPoolFull(t *testing.T) {
	ln := listenLocal(t)

	serverLedger := newFakeLedger(types.Address{1}, types.Block{})
	serverPool := pool.New(0)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		AcceptInbound(conn, serverLedger, serverPool, 9000, noopEvHandler)
	}()

	clientLedger := newFakeLedger(types.Address{2}, types.Block{})
	clientPool := pool.New(8)

	err := DialOutbound(ln.Addr().String(), clientLedger, clientPool, 9001, noopEvHandler)
	if err == nil {
		t.Fatal("expected dial to be refused by a zero-capacity pool")
	}
}

func TestSessionSyncsBehindPeerByWalkingBackAndApplying(t *testing.T) {
	ln := listenLocal(t)

	gen := types.Block{Depth: 0, Coinbase: types.Address{0xAA}}
	child1 := types.Block{Depth: 1, PrevHash: gen.Hash(), Coinbase: types.Address{1}, Timestamp: 1}
	child2 := types.Block{Depth: 2, PrevHash: child1.Hash(), Coinbase: types.Address{2}, Timestamp: 2}

	serverLedger := newFakeLedger(types.Address{1}, child2)
	serverLedger.blocks[gen.Hash()] = gen
	serverLedger.blocks[child1.Hash()] = child1
	serverPool := pool.New(8)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
		AcceptInbound(conn, serverLedger, serverPool, 9000, noopEvHandler)
	}()

	clientLedger := newFakeLedger(types.Address{2}, gen)
	clientPool := pool.New(8)

	done := make(chan error, 1)
	go func() {
		done <- DialOutbound(ln.Addr().String(), clientLedger, clientPool, 9001, noopEvHandler)
	}()

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server accept")
	}

	time.Sleep(100 * time.Millisecond)
	serverConn.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("DialOutbound: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync to finish")
	}

	clientLedger.mu.Lock()
	defer clientLedger.mu.Unlock()
	if clientLedger.top.Hash() != child2.Hash() {
		t.Fatalf("client top = depth %d, want synced to depth %d", clientLedger.top.Depth, child2.Depth)
	}
	if len(clientLedger.addedBlocks) != 2 {
		t.Fatalf("got %d applied blocks, want 2 (child1, child2)", len(clientLedger.addedBlocks))
	}
	if clientLedger.addedBlocks[0].Hash() != child1.Hash() {
		t.Fatalf("blocks must apply in ascending depth order, got depth %d first", clientLedger.addedBlocks[0].Depth)
	}
}
