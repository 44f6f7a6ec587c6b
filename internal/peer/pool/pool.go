// Package pool tracks connected peers: a bounded, endpoint-keyed set that
// rejects a second connection to an already-known endpoint and remembers
// which NEW_NODE announcements have already been forwarded.
//
// Grounded on frederikgramkortegaard-august's p2p/peers.go PeerManager
// (map[string]*Peer guarded by a max-size check in AddPeer), generalized
// from that package's connecting/connected/failed status machine to this
// spec's endpoint-dedup and rebroadcast-once requirements.
package pool

import (
	"errors"
	"sync"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// ErrPoolFull is returned when the pool has already reached its configured
// peer limit.
var ErrPoolFull = errors.New("pool: peer bucket is full")

// ErrAlreadyConnected is returned when a peer with the same endpoint is
// already tracked.
var ErrAlreadyConnected = errors.New("pool: already connected to endpoint")

// Status mirrors a connection's lifecycle.
type Status int

const (
	StatusConnecting Status = iota
	StatusEstablished
	StatusClosed
)

// Send delivers an encoded frame to a peer; session owns the actual
// connection and supplies this as a closure so Pool never touches net.Conn.
type Send func(msgType uint8, body []byte) error

// Peer is one tracked connection.
type Peer struct {
	Endpoint string
	Address  types.Address
	Status   Status
	send     Send
}

// SendFrame delivers a frame to this peer.
func (p *Peer) SendFrame(msgType uint8, body []byte) error {
	return p.send(msgType, body)
}

// Pool is the bounded set of connected peers.
type Pool struct {
	mu      sync.Mutex
	maxSize int
	peers   map[string]*Peer
	seen    map[string]struct{}
}

// New constructs an empty pool bounded to maxSize peers.
func New(maxSize int) *Pool {
	return &Pool{
		maxSize: maxSize,
		peers:   make(map[string]*Peer),
		seen:    make(map[string]struct{}),
	}
}

// Add registers a new peer connection at endpoint. It fails with
// ErrPoolFull once the pool is at capacity, or ErrAlreadyConnected if this
// endpoint is already tracked.
func (p *Pool) Add(endpoint string, address types.Address, send Send) (*Peer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.peers[endpoint]; ok {
		return nil, ErrAlreadyConnected
	}
	if len(p.peers) >= p.maxSize {
		return nil, ErrPoolFull
	}

	peer := &Peer{Endpoint: endpoint, Address: address, Status: StatusEstablished, send: send}
	p.peers[endpoint] = peer
	return peer, nil
}

// Remove drops a peer from the pool, e.g. after its connection closes.
func (p *Pool) Remove(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.peers, endpoint)
}

// Has reports whether endpoint is already tracked.
func (p *Pool) Has(endpoint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.peers[endpoint]
	return ok
}

// Full reports whether the pool is at capacity.
func (p *Pool) Full() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.peers) >= p.maxSize
}

// Snapshot returns every currently connected peer.
func (p *Pool) Snapshot() []*Peer {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Peer, 0, len(p.peers))
	for _, peer := range p.peers {
		out = append(out, peer)
	}
	return out
}

// Broadcast sends a frame to every connected peer except skip (pass ""
// to skip none), dropping per-peer send errors since a single stuck
// socket must never block the rest of the fan-out.
func (p *Pool) Broadcast(msgType uint8, body []byte, skip string) {
	for _, peer := range p.Snapshot() {
		if peer.Endpoint == skip {
			continue
		}
		_ = peer.SendFrame(msgType, body)
	}
}

// MarkSeenNewNode records that endpoint's NEW_NODE announcement has been
// handled, returning true the first time it is seen so callers forward it
// exactly once.
func (p *Pool) MarkSeenNewNode(endpoint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[endpoint]; ok {
		return false
	}
	p.seen[endpoint] = struct{}{}
	return true
}
