package server

import (
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"arenarelay/protocol"
)

// ClientState 客户端会话状态，只能从 Connecting 单向变为 Connected
type ClientState int

const (
	StateConnecting ClientState = iota
	StateConnected
)

func (s ClientState) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "connecting"
}

// MarshalText 使 JSON 输出为可读的状态名
func (s ClientState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Conn 底层连接：可读写的字节流 + 对端地址。net.Conn 与 WebSocket 包装都满足
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Client 已接入的连接及其会话状态，由 Registry 独占持有并在其锁下读写
type Client struct {
	Handle   uuid.UUID // 接入时分配的稳定句柄，用于排除与移除
	ID       int32     // 握手成功后分配，Connecting 状态下无意义
	Name     string
	State    ClientState
	Position protocol.Vec2
	IsDead   bool

	conn   Conn
	remote string
}

// NewClient 包装新接入的连接，初始为 Connecting
func NewClient(conn Conn) *Client {
	c := &Client{Handle: uuid.New(), State: StateConnecting, conn: conn}
	if addr := conn.RemoteAddr(); addr != nil {
		c.remote = addr.String()
	}
	return c
}

// ClientInfo 客户端状态的只读快照
type ClientInfo struct {
	Handle   uuid.UUID     `json:"handle"`
	ID       int32         `json:"id"`
	Name     string        `json:"name"`
	State    ClientState   `json:"state"`
	Position protocol.Vec2 `json:"position"`
	IsDead   bool          `json:"dead"`
	Remote   string        `json:"remote"`
}

func (c *Client) info() ClientInfo {
	return ClientInfo{
		Handle:   c.Handle,
		ID:       c.ID,
		Name:     c.Name,
		State:    c.State,
		Position: c.Position,
		IsDead:   c.IsDead,
		Remote:   c.remote,
	}
}

// write 直接同步写出一帧；失败不在此处理，由该客户端下一次读取暴露
func (c *Client) write(frame []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if d, ok := c.conn.(writeDeadliner); ok {
			_ = d.SetWriteDeadline(time.Now().Add(timeout))
			defer d.SetWriteDeadline(time.Time{})
		}
	}
	return c.conn.Write(frame)
}
