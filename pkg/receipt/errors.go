// Package receipt holds sentinel errors shared by pkg/receipt/channel and
// pkg/receipt/lru, mirroring pkg/binlog's top-level error package.
package receipt

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidBodyLength is returned when a response frame's body_len
	// does not match the expected constant for its cmd.
	ErrInvalidBodyLength = errors.New("receipt: invalid response body length")
	// ErrUnexpectedCmd is returned when a response frame's cmd does not
	// match any cmd the current state expects.
	ErrUnexpectedCmd = errors.New("receipt: unexpected response cmd")
	// ErrTimeout wraps context.DeadlineExceeded for a receive timeout that
	// occurred while still connecting or with a non-empty waiting_resp.
	ErrTimeout = fmt.Errorf("receipt: receive timeout: %w", context.DeadlineExceeded)
	// ErrAlreadyEstablished describes a SETUP_CHANNEL_RESP arriving for a
	// channel that is already established. channel.Channel does not return
	// it: it logs a warning and drops such a response.
	ErrAlreadyEstablished = errors.New("receipt: channel already established")
	// ErrUnexpectedAck is returned when a REPORT_REQ_RECEIPT_RESP arrives
	// with an empty waiting_resp (protocol violation).
	ErrUnexpectedAck = errors.New("receipt: unexpected receipt ack, waiting_resp empty")
)

// ErrServerStatus reports a non-zero status byte on a response header.
type ErrServerStatus struct {
	Code    uint8
	Message string
}

func (e *ErrServerStatus) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("receipt: server status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("receipt: server status %d", e.Code)
}
