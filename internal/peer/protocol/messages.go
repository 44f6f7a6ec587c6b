package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ledgerforge/corechain/internal/blockchain/types"
)

// ErrTruncated is returned when a body decoder runs out of bytes before
// every field has been read.
var ErrTruncated = errors.New("protocol: truncated message body")

// --- primitive writers -----------------------------------------------

type encoder struct{ buf []byte }

func (e *encoder) byte(v byte)      { e.buf = append(e.buf, v) }
func (e *encoder) uint16(v uint16)  { e.buf = binary.BigEndian.AppendUint16(e.buf, v) }
func (e *encoder) uint32(v uint32)  { e.buf = binary.BigEndian.AppendUint32(e.buf, v) }
func (e *encoder) uint64(v uint64)  { e.buf = binary.BigEndian.AppendUint64(e.buf, v) }
func (e *encoder) raw(b []byte)     { e.buf = append(e.buf, b...) }
func (e *encoder) bytes(b []byte) {
	e.uint32(uint32(len(b)))
	e.raw(b)
}
func (e *encoder) str(s string) { e.bytes([]byte(s)) }
func (e *encoder) address(a types.Address) { e.raw(a.Bytes()) }
func (e *encoder) hash(h types.Hash)       { e.raw(h.Bytes()) }
func (e *encoder) balance(b types.Balance) {
	v := b.Bytes32()
	e.raw(v[:])
}

// --- primitive readers -------------------------------------------------

type decoder struct {
	buf []byte
	pos int
}

func newDecoder(b []byte) *decoder { return &decoder{buf: b} }

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return ErrTruncated
	}
	return nil
}

func (d *decoder) byteVal() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) uint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *decoder) uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) rawN(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

func (d *decoder) bytesVal() ([]byte, error) {
	n, err := d.uint32()
	if err != nil {
		return nil, err
	}
	return d.rawN(int(n))
}

func (d *decoder) strVal() (string, error) {
	b, err := d.bytesVal()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) addressVal() (types.Address, error) {
	raw, err := d.rawN(types.AddressSize)
	if err != nil {
		return types.Address{}, err
	}
	return types.AddressFromBytes(raw)
}

func (d *decoder) hashVal() (types.Hash, error) {
	raw, err := d.rawN(32)
	if err != nil {
		return types.Hash{}, err
	}
	var h types.Hash
	copy(h[:], raw)
	return h, nil
}

func (d *decoder) balanceVal() (types.Balance, error) {
	raw, err := d.rawN(32)
	if err != nil {
		return types.Balance{}, err
	}
	var arr [32]byte
	copy(arr[:], raw)
	return types.BalanceFromBytes32(arr), nil
}

// --- tx / block encoding ------------------------------------------------

func (e *encoder) tx(tx types.Tx) {
	e.address(tx.From)
	e.address(tx.To)
	e.balance(tx.Amount)
	e.balance(tx.Fee)
	e.uint32(tx.Timestamp)
	e.byte(byte(tx.Type))
	e.bytes(tx.Data)
	e.bytes(tx.Sign.PublicKey)
	e.bytes(tx.Sign.R)
	e.bytes(tx.Sign.S)
}

func (d *decoder) txVal() (types.Tx, error) {
	var tx types.Tx
	var err error

	if tx.From, err = d.addressVal(); err != nil {
		return tx, err
	}
	if tx.To, err = d.addressVal(); err != nil {
		return tx, err
	}
	if tx.Amount, err = d.balanceVal(); err != nil {
		return tx, err
	}
	if tx.Fee, err = d.balanceVal(); err != nil {
		return tx, err
	}
	if tx.Timestamp, err = d.uint32(); err != nil {
		return tx, err
	}
	typ, err := d.byteVal()
	if err != nil {
		return tx, err
	}
	tx.Type = types.TxType(typ)
	if tx.Data, err = d.bytesVal(); err != nil {
		return tx, err
	}
	if tx.Sign.PublicKey, err = d.bytesVal(); err != nil {
		return tx, err
	}
	if tx.Sign.R, err = d.bytesVal(); err != nil {
		return tx, err
	}
	if tx.Sign.S, err = d.bytesVal(); err != nil {
		return tx, err
	}
	return tx, nil
}

func (e *encoder) block(b types.Block) {
	e.uint64(b.Depth)
	e.hash(b.PrevHash)
	e.uint32(b.Timestamp)
	e.address(b.Coinbase)
	e.uint32(uint32(len(b.Transactions)))
	for _, btx := range b.Transactions {
		e.tx(btx.Tx)
	}
}

func (d *decoder) blockVal() (types.Block, error) {
	var b types.Block
	var err error

	if b.Depth, err = d.uint64(); err != nil {
		return b, err
	}
	if b.PrevHash, err = d.hashVal(); err != nil {
		return b, err
	}
	if b.Timestamp, err = d.uint32(); err != nil {
		return b, err
	}
	if b.Coinbase, err = d.addressVal(); err != nil {
		return b, err
	}
	n, err := d.uint32()
	if err != nil {
		return b, err
	}
	b.Transactions = make([]types.BlockTx, 0, n)
	for i := uint32(0); i < n; i++ {
		tx, err := d.txVal()
		if err != nil {
			return b, err
		}
		b.Transactions = append(b.Transactions, types.BlockTx{Tx: tx})
	}
	return b, nil
}

func (e *encoder) peerInfo(p PeerInfo) {
	e.str(p.Endpoint)
	e.address(p.Address)
}

func (d *decoder) peerInfoVal() (PeerInfo, error) {
	var p PeerInfo
	var err error
	if p.Endpoint, err = d.strVal(); err != nil {
		return p, err
	}
	if p.Address, err = d.addressVal(); err != nil {
		return p, err
	}
	return p, nil
}

func (e *encoder) peerInfoList(peers []PeerInfo) {
	e.uint32(uint32(len(peers)))
	for _, p := range peers {
		e.peerInfo(p)
	}
}

func (d *decoder) peerInfoListVal() ([]PeerInfo, error) {
	n, err := d.uint32()
	if err != nil {
		return nil, err
	}
	out := make([]PeerInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		p, err := d.peerInfoVal()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// --- body encode/decode --------------------------------------------------

// EncodeHandshake serializes the ACCEPTED / ACCEPTED_RESPONSE body.
func EncodeHandshake(h Handshake) []byte {
	e := &encoder{}
	e.block(h.TopBlock)
	e.address(h.NodeAddr)
	e.uint16(h.PublicPort)
	e.peerInfoList(h.KnownPeers)
	return e.buf
}

// DecodeHandshake parses the ACCEPTED / ACCEPTED_RESPONSE body.
func DecodeHandshake(body []byte) (Handshake, error) {
	d := newDecoder(body)
	var h Handshake
	var err error
	if h.TopBlock, err = d.blockVal(); err != nil {
		return h, err
	}
	if h.NodeAddr, err = d.addressVal(); err != nil {
		return h, err
	}
	if h.PublicPort, err = d.uint16(); err != nil {
		return h, err
	}
	if h.KnownPeers, err = d.peerInfoListVal(); err != nil {
		return h, err
	}
	return h, nil
}

// EncodeCannotAccept serializes the CANNOT_ACCEPT body.
func EncodeCannotAccept(c CannotAccept) []byte {
	e := &encoder{}
	e.byte(byte(c.Reason))
	e.peerInfoList(c.KnownPeers)
	return e.buf
}

// DecodeCannotAccept parses the CANNOT_ACCEPT body.
func DecodeCannotAccept(body []byte) (CannotAccept, error) {
	d := newDecoder(body)
	var c CannotAccept
	reason, err := d.byteVal()
	if err != nil {
		return c, err
	}
	c.Reason = CannotAcceptReason(reason)
	if c.KnownPeers, err = d.peerInfoListVal(); err != nil {
		return c, err
	}
	return c, nil
}

// EncodeLookup serializes the LOOKUP body.
func EncodeLookup(l Lookup) []byte {
	e := &encoder{}
	e.address(l.Target)
	e.uint16(l.K)
	return e.buf
}

// DecodeLookup parses the LOOKUP body.
func DecodeLookup(body []byte) (Lookup, error) {
	d := newDecoder(body)
	var l Lookup
	var err error
	if l.Target, err = d.addressVal(); err != nil {
		return l, err
	}
	if l.K, err = d.uint16(); err != nil {
		return l, err
	}
	return l, nil
}

// EncodeLookupResponse serializes the LOOKUP_RESPONSE body.
func EncodeLookupResponse(r LookupResponse) []byte {
	e := &encoder{}
	e.peerInfoList(r.Peers)
	return e.buf
}

// DecodeLookupResponse parses the LOOKUP_RESPONSE body.
func DecodeLookupResponse(body []byte) (LookupResponse, error) {
	d := newDecoder(body)
	peers, err := d.peerInfoListVal()
	return LookupResponse{Peers: peers}, err
}

// EncodeTransaction serializes the TRANSACTION body.
func EncodeTransaction(tx types.Tx) []byte {
	e := &encoder{}
	e.tx(tx)
	return e.buf
}

// DecodeTransaction parses the TRANSACTION body.
func DecodeTransaction(body []byte) (types.Tx, error) {
	return newDecoder(body).txVal()
}

// EncodeGetBlock serializes the GET_BLOCK body: the hash being requested.
func EncodeGetBlock(hash types.Hash) []byte {
	e := &encoder{}
	e.hash(hash)
	return e.buf
}

// DecodeGetBlock parses the GET_BLOCK body.
func DecodeGetBlock(body []byte) (types.Hash, error) {
	return newDecoder(body).hashVal()
}

// EncodeBlock serializes the BLOCK body.
func EncodeBlock(b types.Block) []byte {
	e := &encoder{}
	e.block(b)
	return e.buf
}

// DecodeBlock parses the BLOCK body.
func DecodeBlock(body []byte) (types.Block, error) {
	return newDecoder(body).blockVal()
}

// EncodeBlockNotFound serializes the BLOCK_NOT_FOUND body: the hash that
// could not be found.
func EncodeBlockNotFound(hash types.Hash) []byte {
	e := &encoder{}
	e.hash(hash)
	return e.buf
}

// DecodeBlockNotFound parses the BLOCK_NOT_FOUND body.
func DecodeBlockNotFound(body []byte) (types.Hash, error) {
	return newDecoder(body).hashVal()
}

// EncodeInfo serializes the INFO body.
func EncodeInfo(i Info) []byte {
	e := &encoder{}
	e.hash(i.TopHash)
	e.peerInfoList(i.Peers)
	return e.buf
}

// DecodeInfo parses the INFO body.
func DecodeInfo(body []byte) (Info, error) {
	d := newDecoder(body)
	var i Info
	var err error
	if i.TopHash, err = d.hashVal(); err != nil {
		return i, err
	}
	if i.Peers, err = d.peerInfoListVal(); err != nil {
		return i, err
	}
	return i, nil
}

// EncodeNewNode serializes the NEW_NODE body.
func EncodeNewNode(n NewNode) []byte {
	e := &encoder{}
	e.str(n.Endpoint)
	e.address(n.Address)
	return e.buf
}

// DecodeNewNode parses the NEW_NODE body.
func DecodeNewNode(body []byte) (NewNode, error) {
	d := newDecoder(body)
	var n NewNode
	var err error
	if n.Endpoint, err = d.strVal(); err != nil {
		return n, err
	}
	if n.Address, err = d.addressVal(); err != nil {
		return n, err
	}
	return n, nil
}

// GetInfo and Ping/Pong/Close carry no body; empty byte slices are written
// and read directly by session code via WriteFrame/ReadFrame.

// DecodeError wraps a body-decode failure with the message type that
// failed to parse, for logging at the session layer.
func DecodeError(msgType MessageType, err error) error {
	return fmt.Errorf("protocol: decode %s: %w", msgType, err)
}
