// Package session drives one peer connection: handshake, the
// JUST_ESTABLISHED -> REQUESTED_BLOCKS -> SYNCHRONISED state machine, and
// the per-message dispatch loop.
//
// The accept-loop/per-connection-goroutine/read-loop shape is grounded on
// frederikgramkortegaard-august's p2p/server.go (Start/acceptConnections/
// handlePeerConnection/handleMessages/processMessage) and its
// io.EOF/"connection reset" disconnect classification in handleMessages.
// That package speaks JSON over the raw socket; this one speaks the
// binary length-framed protocol in internal/peer/protocol, since gocuria's
// JSON framing and the teacher's own HTTP+JSON peer gossip
// (foundation/blockchain/peer) both stop short of the wire format spec
// §4.J requires.
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
	"github.com/ledgerforge/corechain/internal/peer/pool"
	"github.com/ledgerforge/corechain/internal/peer/protocol"
)

// State is this session's position in the handshake/sync state machine.
type State int

const (
	StateJustEstablished State = iota
	StateRequestedBlocks
	StateSynchronised
)

func (s State) String() string {
	switch s {
	case StateJustEstablished:
		return "JUST_ESTABLISHED"
	case StateRequestedBlocks:
		return "REQUESTED_BLOCKS"
	case StateSynchronised:
		return "SYNCHRONISED"
	default:
		return "UNKNOWN"
	}
}

// Ledger is the subset of node state a session needs. Kept as a narrow
// interface, mirroring frederikgramkortegaard-august's BlockProcessor, so
// this package never imports internal/core and there is no import cycle
// between the peer layer and the façade that owns it.
type Ledger interface {
	TopBlock() types.Block
	FindBlock(hash types.Hash) (types.Block, bool)
	TryAddBlock(block types.Block) error
	AddTransaction(tx types.Tx) error
	KnownPeers() []protocol.PeerInfo
	NodeAddress() types.Address
}

// maxSyncWalkback bounds how many blocks a single handshake sync will
// request backward before giving up, guarding against a peer that claims
// an implausibly deep chain.
const maxSyncWalkback = 100_000

// Session owns one peer connection.
type Session struct {
	conn     net.Conn
	endpoint string
	ledger   Ledger
	pool     *pool.Pool
	publicPort uint16
	evHandler  func(v string, args ...any)

	mu         sync.Mutex
	state      State
	peerAddr   types.Address
	peerTop    types.Block
	pendingReq map[types.Hash]struct{}
	collected  []types.Block
}

func newSession(conn net.Conn, ledger Ledger, p *pool.Pool, publicPort uint16, evHandler func(v string, args ...any)) *Session {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}
	return &Session{
		conn:       conn,
		endpoint:   conn.RemoteAddr().String(),
		ledger:     ledger,
		pool:       p,
		publicPort: publicPort,
		evHandler:  evHandler,
		state:      StateJustEstablished,
		pendingReq: make(map[types.Hash]struct{}),
	}
}

// AcceptInbound handles a connection accepted by the listener: it expects
// the dialer to speak first with ACCEPTED, then replies with
// ACCEPTED_RESPONSE or CANNOT_ACCEPT depending on pool capacity.
func AcceptInbound(conn net.Conn, ledger Ledger, p *pool.Pool, publicPort uint16, evHandler func(v string, args ...any)) {
	s := newSession(conn, ledger, p, publicPort, evHandler)
	defer s.close()

	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		s.evHandler("session: inbound handshake read from %s failed: %v", s.endpoint, err)
		return
	}
	if frame.Type != protocol.MsgAccepted {
		s.evHandler("session: inbound %s sent %s before handshake", s.endpoint, frame.Type)
		return
	}
	hs, err := protocol.DecodeHandshake(frame.Body)
	if err != nil {
		s.evHandler("session: inbound handshake decode from %s failed: %v", s.endpoint, err)
		return
	}

	peer, err := s.pool.Add(s.endpoint, hs.NodeAddr, s.sendFunc())
	if err != nil {
		reason := protocol.ReasonBucketIsFull
		if errors.Is(err, pool.ErrAlreadyConnected) {
			reason = protocol.ReasonAlreadyConnected
		}
		body := protocol.EncodeCannotAccept(protocol.CannotAccept{Reason: reason, KnownPeers: ledger.KnownPeers()})
		_ = protocol.WriteFrame(conn, protocol.MsgCannotAccept, body)
		return
	}
	_ = peer

	s.peerAddr = hs.NodeAddr
	s.peerTop = hs.TopBlock

	reply := protocol.EncodeHandshake(protocol.Handshake{
		TopBlock:   s.ledger.TopBlock(),
		NodeAddr:   s.ledger.NodeAddress(),
		PublicPort: s.publicPort,
		KnownPeers: s.ledger.KnownPeers(),
	})
	if err := protocol.WriteFrame(conn, protocol.MsgAcceptedResponse, reply); err != nil {
		s.evHandler("session: inbound handshake reply to %s failed: %v", s.endpoint, err)
		s.pool.Remove(s.endpoint)
		return
	}

	s.beginSync()
	s.serve()
	s.pool.Remove(s.endpoint)
}

// DialOutbound connects to endpoint and drives the session as the
// initiating side: it speaks ACCEPTED first and waits for
// ACCEPTED_RESPONSE or CANNOT_ACCEPT.
func DialOutbound(endpoint string, ledger Ledger, p *pool.Pool, publicPort uint16, evHandler func(v string, args ...any)) error {
	conn, err := net.Dial("tcp", endpoint)
	if err != nil {
		return fmt.Errorf("session: dial %s: %w", endpoint, err)
	}

	s := newSession(conn, ledger, p, publicPort, evHandler)
	s.endpoint = endpoint
	defer s.close()

	hello := protocol.EncodeHandshake(protocol.Handshake{
		TopBlock:   s.ledger.TopBlock(),
		NodeAddr:   s.ledger.NodeAddress(),
		PublicPort: s.publicPort,
		KnownPeers: s.ledger.KnownPeers(),
	})
	if err := protocol.WriteFrame(conn, protocol.MsgAccepted, hello); err != nil {
		return fmt.Errorf("session: send handshake to %s: %w", endpoint, err)
	}

	frame, err := protocol.ReadFrame(conn)
	if err != nil {
		return fmt.Errorf("session: read handshake reply from %s: %w", endpoint, err)
	}

	switch frame.Type {
	case protocol.MsgCannotAccept:
		body, decErr := protocol.DecodeCannotAccept(frame.Body)
		if decErr != nil {
			return fmt.Errorf("session: decode CANNOT_ACCEPT from %s: %w", endpoint, decErr)
		}
		return fmt.Errorf("session: %s refused connection: %s", endpoint, body.Reason)
	case protocol.MsgAcceptedResponse:
		hs, decErr := protocol.DecodeHandshake(frame.Body)
		if decErr != nil {
			return fmt.Errorf("session: decode ACCEPTED_RESPONSE from %s: %w", endpoint, decErr)
		}

		peer, addErr := s.pool.Add(endpoint, hs.NodeAddr, s.sendFunc())
		if addErr != nil {
			return addErr
		}
		_ = peer

		s.peerAddr = hs.NodeAddr
		s.peerTop = hs.TopBlock
	default:
		return fmt.Errorf("session: unexpected reply type %s from %s", frame.Type, endpoint)
	}

	s.beginSync()
	s.serve()
	s.pool.Remove(endpoint)
	return nil
}

func (s *Session) sendFunc() pool.Send {
	return func(msgType uint8, body []byte) error {
		return protocol.WriteFrame(s.conn, protocol.MessageType(msgType), body)
	}
}

func (s *Session) close() {
	_ = s.conn.Close()
}

// beginSync compares the peer's announced top block against ours and, if
// the peer is ahead, starts walking backward via GET_BLOCK requests per
// spec §4.J until it reaches a block at our_top.depth+1.
func (s *Session) beginSync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ourTop := s.ledger.TopBlock()
	if s.peerTop.Depth <= ourTop.Depth {
		s.state = StateSynchronised
		return
	}

	s.state = StateRequestedBlocks
	s.collected = []types.Block{s.peerTop}

	if s.peerTop.Depth == ourTop.Depth+1 {
		s.applyCollectedLocked()
		return
	}

	s.requestLocked(s.peerTop.PrevHash)
}

func (s *Session) requestLocked(hash types.Hash) {
	s.pendingReq[hash] = struct{}{}
	body := protocol.EncodeGetBlock(hash)
	_ = protocol.WriteFrame(s.conn, protocol.MsgGetBlock, body)
}

// applyCollectedLocked feeds every walked-back block into the ledger in
// ascending depth order. Caller must hold s.mu.
func (s *Session) applyCollectedLocked() {
	for i := len(s.collected) - 1; i >= 0; i-- {
		if err := s.ledger.TryAddBlock(s.collected[i]); err != nil {
			s.evHandler("session: %s sync apply block at depth %d failed: %v", s.endpoint, s.collected[i].Depth, err)
			break
		}
	}
	s.collected = nil
	s.state = StateSynchronised
}

func (s *Session) serve() {
	for {
		frame, err := protocol.ReadFrame(s.conn)
		if err != nil {
			s.logDisconnect(err)
			return
		}
		if err := s.dispatch(frame); err != nil {
			s.evHandler("session: %s dispatch %s failed: %v", s.endpoint, frame.Type, err)
		}
	}
}

func (s *Session) logDisconnect(err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.evHandler("session: %s disconnected", s.endpoint)
	case strings.Contains(err.Error(), "connection reset"):
		s.evHandler("session: %s connection reset", s.endpoint)
	default:
		s.evHandler("session: %s read failed: %v", s.endpoint, err)
	}
}

func (s *Session) dispatch(frame protocol.Frame) error {
	switch frame.Type {
	case protocol.MsgPing:
		return protocol.WriteFrame(s.conn, protocol.MsgPong, nil)

	case protocol.MsgPong:
		return nil

	case protocol.MsgGetInfo:
		body := protocol.EncodeInfo(protocol.Info{
			TopHash: s.ledger.TopBlock().Hash(),
			Peers:   s.ledger.KnownPeers(),
		})
		return protocol.WriteFrame(s.conn, protocol.MsgInfo, body)

	case protocol.MsgInfo:
		_, err := protocol.DecodeInfo(frame.Body)
		return err

	case protocol.MsgLookup:
		req, err := protocol.DecodeLookup(frame.Body)
		if err != nil {
			return err
		}
		_ = req
		body := protocol.EncodeLookupResponse(protocol.LookupResponse{Peers: s.ledger.KnownPeers()})
		return protocol.WriteFrame(s.conn, protocol.MsgLookupResponse, body)

	case protocol.MsgLookupResponse:
		_, err := protocol.DecodeLookupResponse(frame.Body)
		return err

	case protocol.MsgTransaction:
		tx, err := protocol.DecodeTransaction(frame.Body)
		if err != nil {
			return err
		}
		if err := s.ledger.AddTransaction(tx); err != nil {
			return nil
		}
		s.pool.Broadcast(uint8(protocol.MsgTransaction), frame.Body, s.endpoint)
		return nil

	case protocol.MsgGetBlock:
		hash, err := protocol.DecodeGetBlock(frame.Body)
		if err != nil {
			return err
		}
		block, ok := s.ledger.FindBlock(hash)
		if !ok {
			return protocol.WriteFrame(s.conn, protocol.MsgBlockNotFound, protocol.EncodeBlockNotFound(hash))
		}
		return protocol.WriteFrame(s.conn, protocol.MsgBlock, protocol.EncodeBlock(block))

	case protocol.MsgBlock:
		return s.handleBlock(frame)

	case protocol.MsgBlockNotFound:
		s.mu.Lock()
		s.state = StateSynchronised
		s.collected = nil
		s.mu.Unlock()
		return nil

	case protocol.MsgNewNode:
		nn, err := protocol.DecodeNewNode(frame.Body)
		if err != nil {
			return err
		}
		if s.pool.MarkSeenNewNode(nn.Endpoint) {
			s.pool.Broadcast(uint8(protocol.MsgNewNode), frame.Body, s.endpoint)
		}
		return nil

	case protocol.MsgClose:
		return io.EOF

	default:
		return fmt.Errorf("session: unhandled message type %s", frame.Type)
	}
}

func (s *Session) handleBlock(frame protocol.Frame) error {
	block, err := protocol.DecodeBlock(frame.Body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRequestedBlocks {
		return s.ledger.TryAddBlock(block)
	}

	delete(s.pendingReq, block.Hash())
	ourTop := s.ledger.TopBlock()

	if block.Depth <= ourTop.Depth || len(s.collected) > maxSyncWalkback {
		s.applyCollectedLocked()
		return nil
	}

	s.collected = append(s.collected, block)

	if block.Depth == ourTop.Depth+1 {
		s.applyCollectedLocked()
		return nil
	}

	s.requestLocked(block.PrevHash)
	return nil
}
