package server

import (
	"github.com/google/uuid"

	"arenarelay/protocol"
)

// dispatch 按客户端当前状态路由一帧消息，或处理该连接的读取失败
func (s *Server) dispatch(ev event) {
	if ev.Err != nil {
		s.dropClient(ev.Handle, ev.Err)
		return
	}
	s.metrics.IncFramesIn()

	c, ok := s.registry.Info(ev.Handle)
	if !ok {
		// 已被移除（例如握手被拒后仍在途的帧）
		return
	}

	switch c.State {
	case StateConnecting:
		// 握手前只处理 Handshake，其余类型静默忽略
		if hs, ok := ev.Msg.(protocol.Handshake); ok {
			s.handleHandshake(c, hs)
			return
		}
		s.ignore(c, ev.Msg)
	case StateConnected:
		s.handleGameplay(c, ev.Msg)
	}
}

func (s *Server) ignore(c ClientInfo, msg protocol.Message) {
	s.metrics.IncFramesIgnored()
	Log.Debugf("ignored %s from %s (%s)", msg.Type(), c.Remote, c.State)
}

func (s *Server) handleHandshake(c ClientInfo, hs protocol.Handshake) {
	if hs.Version != protocol.Version {
		s.metrics.IncVersionRejects()
		Log.Warnf("handshake from %s with protocol version %d, expected %d; dropping",
			c.Remote, hs.Version, protocol.Version)
		s.notices.VersionMismatch(c.Remote, hs.Version, protocol.Version)
		s.removeClient(c.Handle, "version mismatch")
		return
	}

	name := protocol.TruncateName(hs.Name)
	// 确认帧在切换状态的同一次加锁内写出，先于任何广播
	id, written, ok := s.registry.Promote(c.Handle, name)
	if !ok {
		return
	}
	s.metrics.AddBytesOut(written)
	s.metrics.IncHandshakes()
	Log.Infof("player %d (%s) joined from %s", id, name, c.Remote)
	s.notices.Joined(id, name)

	s.broadcast(protocol.Connected{ID: id, Name: name}, c.Handle)

	// 新玩家按接入顺序逐条收到其他已连接玩家
	roster := s.registry.Roster(c.Handle)
	msgs := make([]protocol.Message, 0, len(roster))
	for _, other := range roster {
		msgs = append(msgs, other)
	}
	s.sendTo(c.Handle, msgs...)
}

func (s *Server) handleGameplay(c ClientInfo, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.SpacialInfo:
		s.registry.SetPosition(c.Handle, m.Position)
		s.broadcast(protocol.Spacial{ID: c.ID, Position: m.Position, Velocity: m.Velocity}, c.Handle)
	case protocol.Death:
		s.broadcast(protocol.Death{Target: m.Target}, c.Handle)
		if s.registry.MarkDead(m.Target) {
			Log.Infof("player %d killed (reported by %d)", m.Target, c.ID)
		}
		s.checkSession()
	case protocol.AttackAnim:
		s.broadcast(protocol.Attack{ID: c.ID}, c.Handle)
	case protocol.CarryChange:
		s.broadcast(protocol.CarryChanged{ID: c.ID, Carry: m.Carry}, c.Handle)
	case protocol.Stunned:
		s.broadcast(protocol.PlayerStunned{ID: c.ID, Position: m.Position}, c.Handle)
	default:
		s.ignore(c, msg)
	}
}

// broadcast 编码一次，写给除 except 外所有 Connected 客户端。
// 单个客户端的写失败不在此处理，会在它下一次读取时暴露并走统一的移除路径。
func (s *Server) broadcast(m protocol.Message, except uuid.UUID) {
	frame, err := protocol.Marshal(m)
	if err != nil {
		Log.Errorf("encode broadcast: %v", err)
		return
	}
	n, written := s.registry.Broadcast(frame, except)
	s.metrics.IncBroadcasts()
	s.metrics.AddBytesOut(written)
	Log.Debugf("broadcast %s to %d clients", m.Type(), n)
}

func (s *Server) sendTo(handle uuid.UUID, msgs ...protocol.Message) {
	if len(msgs) == 0 {
		return
	}
	frames := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		frame, err := protocol.Marshal(m)
		if err != nil {
			Log.Errorf("encode %s: %v", m.Type(), err)
			return
		}
		frames = append(frames, frame)
	}
	written, _ := s.registry.SendTo(handle, frames...)
	s.metrics.AddBytesOut(written)
}

// dropClient 读取失败后的移除
func (s *Server) dropClient(handle uuid.UUID, err error) {
	reason := dropReason(err)
	c, ok := s.removeClient(handle, reason)
	if !ok {
		return
	}
	if c.State == StateConnecting {
		s.notices.Dropped(c.Remote, reason)
	}
	if reason == reasonPeerClosed {
		Log.Infof("%s closed (%s): %v", c.Remote, c.State, err)
	} else {
		Log.Warnf("%s removed after %s: %v", c.Remote, reason, err)
	}
}

// removeClient 唯一的移除路径：移出注册表、关闭连接，
// 已握手的客户端向其余玩家广播 Disconnected，随后做一次会话检查。
// 客户端已不在注册表时什么也不做。
func (s *Server) removeClient(handle uuid.UUID, reason string) (ClientInfo, bool) {
	c, conn, ok := s.registry.Remove(handle)
	if !ok {
		return ClientInfo{}, false
	}
	_ = conn.Close()
	s.forget(handle)
	s.metrics.IncRemovals()

	if c.State == StateConnected {
		Log.Infof("player %d (%s) disconnected: %s", c.ID, c.Name, reason)
		s.notices.Left(c.ID, c.Name)
		s.broadcast(protocol.Disconnected{ID: c.ID}, uuid.Nil)
	}
	s.checkSession()
	return c, true
}

// checkSession 存活的已连接玩家少于两人时广播 GameReset 并清除全部死亡标记。
// 不记录本局是否已重置过，连续满足条件的事件会各自触发一次。
func (s *Server) checkSession() {
	res := s.registry.ResetIfFewerAlive(minAlivePlayers, s.resetFrame)
	if !res.Reset {
		return
	}
	s.metrics.AddBytesOut(res.Written)
	if res.Recipients == 0 {
		Log.Debugf("session check: %d alive, nobody to reset", res.Alive)
		return
	}
	s.metrics.IncResets()
	Log.Infof("round reset: %d alive, GameReset sent to %d clients", res.Alive, res.Recipients)
	s.notices.Reset(res.Alive)
}
