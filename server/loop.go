package server

import (
	"bufio"
	"context"

	"github.com/google/uuid"

	"arenarelay/protocol"
)

// readPump 每个连接一个读协程：阻塞读取一帧后交给分发循环。
// 读取失败（对端关闭、I/O 错误、无法分帧）时把错误作为最后一项交出并退出。
func (s *Server) readPump(handle uuid.UUID, conn Conn) {
	defer s.readers.Done()
	br := bufio.NewReader(conn)
	for {
		msg, err := protocol.ReadClient(br)
		select {
		case s.events <- event{Handle: handle, Msg: msg, Err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// dispatchLoop 单协程按到达顺序处理所有连接的帧；通道为空时阻塞等待，不会空转
func (s *Server) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.dispatch(ev)
		}
	}
}
