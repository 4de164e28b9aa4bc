package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/gorilla/websocket"

	"arenarelay/protocol"
)

func TestDropReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{io.EOF, reasonPeerClosed},
		{fmt.Errorf("read: %w", net.ErrClosed), reasonPeerClosed},
		{&websocket.CloseError{Code: websocket.CloseNormalClosure}, reasonPeerClosed},
		{io.ErrUnexpectedEOF, "truncated frame"},
		{fmt.Errorf("decode: %w", protocol.ErrUnknownType), "malformed frame"},
		{syscall.ECONNRESET, "i/o error"},
		{errors.New("boom"), "i/o error"},
	}
	for _, tt := range tests {
		if got := dropReason(tt.err); got != tt.want {
			t.Errorf("dropReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
