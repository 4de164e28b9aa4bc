package server

import (
	"io"
	"sync"

	"github.com/fatih/color"
)

// Notices 在控制台打印玩家加入、离开、被拒绝与重置等提示，仅供观察
type Notices struct {
	mu  sync.Mutex
	out io.Writer
}

var (
	joinColor   = color.New(color.FgGreen)
	leaveColor  = color.New(color.FgYellow)
	rejectColor = color.New(color.FgRed, color.Bold)
	resetColor  = color.New(color.FgCyan)
)

// NewNotices w 为 nil 时不输出
func NewNotices(w io.Writer) *Notices {
	return &Notices{out: w}
}

func (n *Notices) printf(c *color.Color, format string, args ...any) {
	if n == nil || n.out == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = c.Fprintf(n.out, format+"\n", args...)
}

func (n *Notices) Joined(id int32, name string) {
	n.printf(joinColor, "+ player %d (%s) joined", id, name)
}

func (n *Notices) Left(id int32, name string) {
	n.printf(leaveColor, "- player %d (%s) disconnected", id, name)
}

func (n *Notices) Dropped(remote, reason string) {
	n.printf(leaveColor, "- connection %s dropped: %s", remote, reason)
}

func (n *Notices) VersionMismatch(remote string, got, want uint16) {
	n.printf(rejectColor, "! %s rejected: protocol version %d, server speaks %d", remote, got, want)
}

func (n *Notices) Reset(alive int) {
	n.printf(resetColor, "* round reset (%d alive)", alive)
}
