// Package protocol implements the peer wire format: a length-prefixed
// binary framing with a dense message-type table, per spec §4.J.
//
// The teacher's peer gossip (foundation/blockchain/peer, worker/sharetx.go,
// worker/peer.go) speaks plain HTTP POST with JSON bodies — there is no
// framing concern to ground on there. frederikgramkortegaard-august's
// p2p/server.go shows the accept-loop and per-connection goroutine shape
// this package's sibling (peer/session) follows, but its own wire format
// is length-delimited JSON, not the binary format this spec requires. This
// package is therefore new: a from-scratch binary codec, kept in the
// teacher's idiom of small sentinel errors and explicit big-endian byte
// packing (matching internal/blockchain/types' canonical encoders).
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// MessageType identifies the message table entries from spec §4.J.
type MessageType uint8

const (
	MsgAccepted MessageType = iota + 1
	MsgAcceptedResponse
	MsgCannotAccept
	MsgPing
	MsgPong
	MsgLookup
	MsgLookupResponse
	MsgTransaction
	MsgGetBlock
	MsgBlock
	MsgBlockNotFound
	MsgGetInfo
	MsgInfo
	MsgNewNode
	MsgClose
)

func (t MessageType) String() string {
	switch t {
	case MsgAccepted:
		return "ACCEPTED"
	case MsgAcceptedResponse:
		return "ACCEPTED_RESPONSE"
	case MsgCannotAccept:
		return "CANNOT_ACCEPT"
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	case MsgLookup:
		return "LOOKUP"
	case MsgLookupResponse:
		return "LOOKUP_RESPONSE"
	case MsgTransaction:
		return "TRANSACTION"
	case MsgGetBlock:
		return "GET_BLOCK"
	case MsgBlock:
		return "BLOCK"
	case MsgBlockNotFound:
		return "BLOCK_NOT_FOUND"
	case MsgGetInfo:
		return "GET_INFO"
	case MsgInfo:
		return "INFO"
	case MsgNewNode:
		return "NEW_NODE"
	case MsgClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// CannotAcceptReason enumerates why a listener refused an inbound peer.
type CannotAcceptReason uint8

const (
	ReasonBucketIsFull CannotAcceptReason = iota
	ReasonAlreadyConnected
	ReasonIncompatibleVersion
)

func (r CannotAcceptReason) String() string {
	switch r {
	case ReasonBucketIsFull:
		return "BUCKET_IS_FULL"
	case ReasonAlreadyConnected:
		return "ALREADY_CONNECTED"
	case ReasonIncompatibleVersion:
		return "INCOMPATIBLE_VERSION"
	default:
		return "UNKNOWN"
	}
}

// MaxFrameSize bounds a single frame's payload (type byte plus body) to
// what the big-endian uint16 length prefix can express.
const MaxFrameSize = 1<<16 - 1 // 65535 bytes

// ErrFrameTooLarge is returned when a peer announces a frame length
// beyond MaxFrameSize.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// ErrShortBody is returned when a message body is too short to contain
// its required fields.
var ErrShortBody = errors.New("protocol: message body too short")

// PeerInfo is the address-book entry exchanged in ACCEPTED, LOOKUP_RESPONSE
// and NEW_NODE messages.
type PeerInfo struct {
	Endpoint string
	Address  types.Address
}

// Handshake is the body shared by ACCEPTED and ACCEPTED_RESPONSE.
type Handshake struct {
	TopBlock   types.Block
	NodeAddr   types.Address
	PublicPort uint16
	KnownPeers []PeerInfo
}

// CannotAccept is the CANNOT_ACCEPT body.
type CannotAccept struct {
	Reason     CannotAcceptReason
	KnownPeers []PeerInfo
}

// Lookup is the LOOKUP body.
type Lookup struct {
	Target types.Address
	K      uint16
}

// LookupResponse is the LOOKUP_RESPONSE body.
type LookupResponse struct {
	Peers []PeerInfo
}

// Info is the INFO body.
type Info struct {
	TopHash types.Hash
	Peers   []PeerInfo
}

// NewNode is the NEW_NODE body.
type NewNode struct {
	Endpoint string
	Address  types.Address
}

// Frame is a decoded message: its type tag plus raw, still-encoded body
// bytes. Session code decodes the body according to Type.
type Frame struct {
	Type MessageType
	Body []byte
}

// WriteFrame writes length||type||body to w. length counts the type byte
// plus the body.
func WriteFrame(w io.Writer, msgType MessageType, body []byte) error {
	if len(body)+1 > MaxFrameSize {
		return ErrFrameTooLarge
	}

	length := uint16(len(body) + 1)

	header := make([]byte, 3)
	binary.BigEndian.PutUint16(header[0:2], length)
	header[2] = byte(msgType)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("protocol: write header: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("protocol: write body: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}

	length := binary.BigEndian.Uint16(lenBuf[:])
	if length == 0 {
		return Frame{}, ErrShortBody
	}
	if int(length) > MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("protocol: read payload: %w", err)
	}

	return Frame{Type: MessageType(payload[0]), Body: payload[1:]}, nil
}
