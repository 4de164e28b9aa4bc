package server

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"arenarelay/protocol"
)

// Registry 全部已接入客户端的唯一数据源。
// 按接入顺序保存，所有读取、修改与向套接字的写出都在同一把锁下完成。
type Registry struct {
	mu           sync.Mutex
	clients      []*Client
	nextID       int32
	writeTimeout time.Duration
}

// NewRegistry 创建空的注册表
func NewRegistry(writeTimeout time.Duration) *Registry {
	return &Registry{writeTimeout: writeTimeout}
}

func (r *Registry) indexOf(handle uuid.UUID) int {
	for i, c := range r.clients {
		if c.Handle == handle {
			return i
		}
	}
	return -1
}

// Add 注册新接入的客户端；同一句柄不会重复加入
func (r *Registry) Add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(c.Handle) >= 0 {
		return false
	}
	r.clients = append(r.clients, c)
	return true
}

// Remove 移出客户端并返回其最后状态与连接；不存在时 ok 为 false
func (r *Registry) Remove(handle uuid.UUID) (info ClientInfo, conn Conn, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(handle)
	if i < 0 {
		return ClientInfo{}, nil, false
	}
	c := r.clients[i]
	r.clients = slices.Delete(r.clients, i, i+1)
	return c.info(), c.conn, true
}

// Info 返回单个客户端快照
func (r *Registry) Info(handle uuid.UUID) (ClientInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(handle); i >= 0 {
		return r.clients[i].info(), true
	}
	return ClientInfo{}, false
}

// Len 当前客户端数（含 Connecting）
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Snapshot 按接入顺序返回全部客户端快照
func (r *Registry) Snapshot() []ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ClientInfo, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.info())
	}
	return out
}

// Promote 握手成功：写入名字、分配递增 id、切换到 Connected，并在同一次加锁内
// 写出 HandshakeAck，保证确认帧是该客户端收到的第一帧。
// 已是 Connected 的客户端保持原 id 不变，也不再写出确认。
func (r *Registry) Promote(handle uuid.UUID, name string) (id int32, written int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(handle)
	if i < 0 {
		return 0, 0, false
	}
	c := r.clients[i]
	if c.State == StateConnected {
		return c.ID, 0, true
	}
	c.ID = r.nextID
	r.nextID++
	c.Name = name
	c.State = StateConnected

	written, err := c.write(protocol.MustMarshal(protocol.HandshakeAck{ID: c.ID}), r.writeTimeout)
	if err != nil {
		Log.Debugf("handshake ack to %s failed: %v", c.remote, err)
	}
	return c.ID, written, true
}

// SetPosition 更新客户端最后上报的位置
func (r *Registry) SetPosition(handle uuid.UUID, pos protocol.Vec2) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(handle); i >= 0 {
		r.clients[i].Position = pos
		return true
	}
	return false
}

// MarkDead 将 id 对应的 Connected 客户端标记为死亡
func (r *Registry) MarkDead(id int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.State == StateConnected && c.ID == id {
			c.IsDead = true
			return true
		}
	}
	return false
}

// Roster 按接入顺序返回除 except 外全部 Connected 客户端的 Connected 事件
func (r *Registry) Roster(except uuid.UUID) []protocol.Connected {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Connected
	for _, c := range r.clients {
		if c.State == StateConnected && c.Handle != except {
			out = append(out, protocol.Connected{ID: c.ID, Name: c.Name})
		}
	}
	return out
}

// SendTo 向单个客户端依次写出若干帧；客户端不存在时返回 false
func (r *Registry) SendTo(handle uuid.UUID, frames ...[]byte) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(handle)
	if i < 0 {
		return 0, false
	}
	c := r.clients[i]
	total := 0
	for _, f := range frames {
		n, err := c.write(f, r.writeTimeout)
		total += n
		if err != nil {
			Log.Debugf("send to %s failed: %v", c.remote, err)
			break
		}
	}
	return total, true
}

// Broadcast 将同一份编码后的帧写给除 except 外所有 Connected 客户端。
// 返回收到的客户端数与写出的字节数。
func (r *Registry) Broadcast(frame []byte, except uuid.UUID) (recipients, written int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(frame, except)
}

func (r *Registry) broadcastLocked(frame []byte, except uuid.UUID) (recipients, written int) {
	for _, c := range r.clients {
		if c.State != StateConnected || c.Handle == except {
			continue
		}
		n, err := c.write(frame, r.writeTimeout)
		written += n
		if err != nil {
			Log.Debugf("broadcast to player %d (%s) failed: %v", c.ID, c.remote, err)
			continue
		}
		recipients++
	}
	return recipients, written
}

// ResetResult 一次会话检查的结果
type ResetResult struct {
	Alive      int  // 检查时存活的 Connected 客户端数
	Reset      bool // 是否发出了 GameReset
	Recipients int
	Written    int
}

// ResetIfFewerAlive 统计存活的 Connected 客户端，少于 minAlive 时向全部 Connected
// 客户端广播 reset 帧并清除所有死亡标记。统计、广播与清除在同一次加锁内完成。
func (r *Registry) ResetIfFewerAlive(minAlive int, reset []byte) ResetResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res ResetResult
	for _, c := range r.clients {
		if c.State == StateConnected && !c.IsDead {
			res.Alive++
		}
	}
	if res.Alive >= minAlive {
		return res
	}
	res.Reset = true
	res.Recipients, res.Written = r.broadcastLocked(reset, uuid.Nil)
	for _, c := range r.clients {
		c.IsDead = false
	}
	return res
}
