// Package peer wires the protocol, session and pool packages into a
// listening node: accept inbound connections, dial configured seeds, and
// broadcast new transactions and blocks to every connected peer.
//
// Grounded directly on frederikgramkortegaard-august's p2p/server.go
// Server/Start/acceptConnections shape; Config here plays the role that
// package's Config{Port, NodeID, Store, BlockProcessor} plays, narrowed to
// the session.Ledger interface so this package never imports internal/core.
package peer

import (
	"fmt"
	"net"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
	"github.com/ledgerforge/corechain/internal/peer/pool"
	"github.com/ledgerforge/corechain/internal/peer/protocol"
	"github.com/ledgerforge/corechain/internal/peer/session"
)

// DefaultMaxPeers bounds how many simultaneous connections a node keeps,
// matching the order of magnitude of frederikgramkortegaard-august's
// PeerManager.maxPeers default.
const DefaultMaxPeers = 32

// Server listens for inbound peer connections and manages outbound ones.
type Server struct {
	port       string
	publicPort uint16
	ledger     session.Ledger
	pool       *pool.Pool
	listener   net.Listener
	evHandler  func(v string, args ...any)
}

// NewServer constructs a Server bound to port, backed by ledger.
func NewServer(port string, publicPort uint16, maxPeers int, ledger session.Ledger, evHandler func(v string, args ...any)) *Server {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}
	if maxPeers <= 0 {
		maxPeers = DefaultMaxPeers
	}
	return &Server{
		port:       port,
		publicPort: publicPort,
		ledger:     ledger,
		pool:       pool.New(maxPeers),
		evHandler:  evHandler,
	}
}

// Start begins listening and accepting connections in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("peer: listen on %s: %w", s.port, err)
	}
	s.listener = listener
	s.evHandler("peer: listening on %s", s.port)

	go s.acceptConnections()
	return nil
}

// Stop closes the listener, ending acceptConnections.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.evHandler("peer: accept failed: %v", err)
			return
		}
		go session.AcceptInbound(conn, s.ledger, s.pool, s.publicPort, s.evHandler)
	}
}

// Connect dials endpoint and blocks for the lifetime of that session; call
// it in its own goroutine for a fire-and-forget outbound connection.
func (s *Server) Connect(endpoint string) error {
	if s.pool.Has(endpoint) {
		return pool.ErrAlreadyConnected
	}
	return session.DialOutbound(endpoint, s.ledger, s.pool, s.publicPort, s.evHandler)
}

// BroadcastTransaction fans a transaction out to every connected peer.
func (s *Server) BroadcastTransaction(tx types.Tx) {
	s.pool.Broadcast(uint8(protocol.MsgTransaction), protocol.EncodeTransaction(tx), "")
}

// BroadcastBlock fans a newly mined block out to every connected peer.
func (s *Server) BroadcastBlock(block types.Block) {
	s.pool.Broadcast(uint8(protocol.MsgBlock), protocol.EncodeBlock(block), "")
}

// PeerCount returns the number of currently connected peers.
func (s *Server) PeerCount() int {
	return len(s.pool.Snapshot())
}

// KnownPeers returns the current address book as the PeerInfo list the
// protocol's handshake and LOOKUP_RESPONSE messages carry. Wire this into
// core.Core.SetPeersFn so the façade can answer KnownPeers without
// importing the peer package directly.
func (s *Server) KnownPeers() []protocol.PeerInfo {
	snapshot := s.pool.Snapshot()
	out := make([]protocol.PeerInfo, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, protocol.PeerInfo{Endpoint: p.Endpoint, Address: p.Address})
	}
	return out
}
