package server

import (
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"arenarelay/protocol"
)

// event 读协程交给分发循环的一项：一帧完整消息，或终止该连接的读取错误。
// 同一连接的帧与错误走同一条通道，保证按到达顺序处理。
type event struct {
	Handle uuid.UUID
	Msg    protocol.Message
	Err    error
}

const reasonPeerClosed = "peer closed"

// dropReason 将读取错误归类为简短原因，仅用于日志与控制台提示
func dropReason(err error) string {
	var closeErr *websocket.CloseError
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.As(err, &closeErr):
		return reasonPeerClosed
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "truncated frame"
	case errors.Is(err, protocol.ErrUnknownType):
		return "malformed frame"
	default:
		return "i/o error"
	}
}
