// Package wire encodes and decodes the idempotency-receipt frame format:
// an 8-byte Header followed by a command-specific body, all big-endian on
// the wire. The layouts are a handful of fixed-size structs, encoded with
// encoding/binary helpers directly rather than a generated codec.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Cmd identifies the frame's command.
type Cmd uint8

const (
	// SetupChannelReq is sent by the client to establish or re-establish
	// a channel.
	SetupChannelReq Cmd = iota + 1
	// SetupChannelResp is the server's response, assigning (channel_id, key).
	SetupChannelResp
	// ReportReqReceiptReq batches acknowledged request IDs to the server.
	ReportReqReceiptReq
	// ReportReqReceiptResp acknowledges a ReportReqReceiptReq batch.
	ReportReqReceiptResp
	// PingReq is a zero-body heartbeat frame issued by pkg/receipt/lru
	// against idle-but-healthy channels, in place of closing them.
	PingReq
)

func (c Cmd) String() string {
	switch c {
	case SetupChannelReq:
		return "SETUP_CHANNEL_REQ"
	case SetupChannelResp:
		return "SETUP_CHANNEL_RESP"
	case ReportReqReceiptReq:
		return "REPORT_REQ_RECEIPT_REQ"
	case ReportReqReceiptResp:
		return "REPORT_REQ_RECEIPT_RESP"
	case PingReq:
		return "PING_REQ"
	default:
		return fmt.Sprintf("Cmd(%d)", uint8(c))
	}
}

// HeaderSize is the on-wire size of Header, in bytes.
const HeaderSize = 8

// Header is the common frame header for every wire message: cmd, status,
// flags, a reserved padding byte, and a big-endian body length.
type Header struct {
	Cmd     Cmd
	Status  uint8
	Flags   uint8
	BodyLen uint32
}

// Encode appends the header's wire representation to dst and returns it.
func (h Header) Encode(dst []byte) []byte {
	dst = append(dst, byte(h.Cmd), h.Status, h.Flags, 0)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], h.BodyLen)
	return append(dst, lenBuf[:]...)
}

// DecodeHeader parses a Header from the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: got %d bytes, want %d", len(buf), HeaderSize)
	}
	return Header{
		Cmd:     Cmd(buf[0]),
		Status:  buf[1],
		Flags:   buf[2],
		BodyLen: binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// SetupChannelBodyLen is the wire size of a SetupChannelReq/Resp body.
const SetupChannelBodyLen = 8

// SetupChannelBody is the body of both SETUP_CHANNEL_REQ and
// SETUP_CHANNEL_RESP: a (channel_id, key) pair.
type SetupChannelBody struct {
	ChannelID uint32
	Key       uint32
}

// Encode appends the body's wire representation to dst.
func (b SetupChannelBody) Encode(dst []byte) []byte {
	var buf [SetupChannelBodyLen]byte
	binary.BigEndian.PutUint32(buf[0:4], b.ChannelID)
	binary.BigEndian.PutUint32(buf[4:8], b.Key)
	return append(dst, buf[:]...)
}

// DecodeSetupChannelBody parses a SetupChannelBody from buf. buf must be
// exactly SetupChannelBodyLen bytes; a mismatched length is the caller's
// ErrInvalidBodyLength condition (pkg/receipt/channel checks len(body)
// before calling).
func DecodeSetupChannelBody(buf []byte) (SetupChannelBody, error) {
	if len(buf) != SetupChannelBodyLen {
		return SetupChannelBody{}, fmt.Errorf("wire: bad SetupChannel body length: %d", len(buf))
	}
	return SetupChannelBody{
		ChannelID: binary.BigEndian.Uint32(buf[0:4]),
		Key:       binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// reportReqReceiptHeaderLen is the size of the count+padding header that
// precedes the req_id array in a REPORT_REQ_RECEIPT_REQ body.
const reportReqReceiptHeaderLen = 8

// reqIDSize is the wire size of one req_id cell.
const reqIDSize = 8

// ReportReqReceiptBody is the body of REPORT_REQ_RECEIPT_REQ: a count
// followed by that many big-endian req_id values.
type ReportReqReceiptBody struct {
	ReqIDs []uint64
}

// EncodedLen returns the wire length of the body for n req_ids.
func EncodedLen(n int) int {
	return reportReqReceiptHeaderLen + n*reqIDSize
}

// MaxReceiptCount returns how many req_ids fit in a body of at most
// bodyCap bytes, used to decide when a batch would overflow the send
// buffer and must be split.
func MaxReceiptCount(bodyCap int) int {
	if bodyCap <= reportReqReceiptHeaderLen {
		return 0
	}
	return (bodyCap - reportReqReceiptHeaderLen) / reqIDSize
}

// Encode appends the body's wire representation to dst.
func (b ReportReqReceiptBody) Encode(dst []byte) []byte {
	var hdr [reportReqReceiptHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(b.ReqIDs)))
	dst = append(dst, hdr[:]...)
	for _, id := range b.ReqIDs {
		var buf [reqIDSize]byte
		binary.BigEndian.PutUint64(buf[:], id)
		dst = append(dst, buf[:]...)
	}
	return dst
}

// DecodeReportReqReceiptBody parses a ReportReqReceiptBody from buf.
func DecodeReportReqReceiptBody(buf []byte) (ReportReqReceiptBody, error) {
	if len(buf) < reportReqReceiptHeaderLen {
		return ReportReqReceiptBody{}, fmt.Errorf("wire: short ReportReqReceipt body: %d bytes", len(buf))
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	want := reportReqReceiptHeaderLen + int(count)*reqIDSize
	if len(buf) != want {
		return ReportReqReceiptBody{}, fmt.Errorf("wire: bad ReportReqReceipt body length: got %d, want %d", len(buf), want)
	}
	ids := make([]uint64, count)
	for i := range ids {
		off := reportReqReceiptHeaderLen + i*reqIDSize
		ids[i] = binary.BigEndian.Uint64(buf[off : off+reqIDSize])
	}
	return ReportReqReceiptBody{ReqIDs: ids}, nil
}
