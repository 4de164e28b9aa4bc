package server

import (
	"sync/atomic"
)

// RelayMetrics 记录中继运行期的关键指标（用于监控与调试）
type RelayMetrics struct {
	Accepted       int64 // 接入的连接数（TCP + WebSocket）
	Handshakes     int64 // 成功握手数
	VersionRejects int64 // 因协议版本不一致被拒绝的握手数
	FramesIn       int64 // 读取到的完整帧
	FramesIgnored  int64 // 当前状态下无效而被忽略的帧
	Broadcasts     int64 // 广播次数（每条消息计一次）
	BytesOut       int64 // 成功写出的字节数
	Removals       int64 // 被移除的客户端
	Resets         int64 // 发出的 GameReset 次数
}

func (m *RelayMetrics) IncAccepted() { atomic.AddInt64(&m.Accepted, 1) }
func (m *RelayMetrics) IncHandshakes() { atomic.AddInt64(&m.Handshakes, 1) }
func (m *RelayMetrics) IncVersionRejects() { atomic.AddInt64(&m.VersionRejects, 1) }
func (m *RelayMetrics) IncFramesIn() { atomic.AddInt64(&m.FramesIn, 1) }
func (m *RelayMetrics) IncFramesIgnored() { atomic.AddInt64(&m.FramesIgnored, 1) }
func (m *RelayMetrics) IncBroadcasts() { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RelayMetrics) AddBytesOut(n int) { atomic.AddInt64(&m.BytesOut, int64(n)) }
func (m *RelayMetrics) IncRemovals() { atomic.AddInt64(&m.Removals, 1) }
func (m *RelayMetrics) IncResets() { atomic.AddInt64(&m.Resets, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RelayMetrics) Snapshot() map[string]any {
	return map[string]any{
		"accepted":        atomic.LoadInt64(&m.Accepted),
		"handshakes":      atomic.LoadInt64(&m.Handshakes),
		"version_rejects": atomic.LoadInt64(&m.VersionRejects),
		"frames_in":       atomic.LoadInt64(&m.FramesIn),
		"frames_ignored":  atomic.LoadInt64(&m.FramesIgnored),
		"broadcasts":      atomic.LoadInt64(&m.Broadcasts),
		"bytes_out":       atomic.LoadInt64(&m.BytesOut),
		"removals":        atomic.LoadInt64(&m.Removals),
		"resets":          atomic.LoadInt64(&m.Resets),
	}
}
