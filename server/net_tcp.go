package server

import (
	"errors"
	"net"
)

// acceptLoop 逐个接受 TCP 连接并以 Connecting 状态登记，不做握手。
// Accept 失败（包括停止时监听被关闭）即结束循环。
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				Log.Info("listener closed")
			} else {
				Log.Errorf("accept failed, acceptor stopping: %v", err)
			}
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			// 小包实时转发，关闭 Nagle
			_ = tc.SetNoDelay(true)
		}
		s.register(conn)
	}
}
