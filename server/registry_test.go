package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"

	"arenarelay/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (f *fakeConn) Read(p []byte) (int, error) { return 0, io.EOF }

func (f *fakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, net.ErrClosed
	}
	return f.buf.Write(p)
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// received 解码目前写入的全部帧
func (f *fakeConn) received(t *testing.T) []protocol.Message {
	t.Helper()
	f.mu.Lock()
	r := bytes.NewReader(f.buf.Bytes())
	f.mu.Unlock()
	var out []protocol.Message
	for {
		m, err := protocol.ReadServer(r)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("decode written frames: %v", err)
		}
		out = append(out, m)
	}
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf.Reset()
}

func newFakeClient() (*Client, *fakeConn) {
	fc := &fakeConn{}
	return NewClient(fc), fc
}

// connectFake 加入并完成握手，清掉确认帧后返回分配的 id
func connectFake(t *testing.T, r *Registry, name string) (*Client, *fakeConn, int32) {
	t.Helper()
	c, fc := newFakeClient()
	r.Add(c)
	id, _, ok := r.Promote(c.Handle, name)
	if !ok {
		t.Fatalf("promote %s failed", name)
	}
	fc.reset()
	return c, fc, id
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry(0)
	a, _ := newFakeClient()
	b, _ := newFakeClient()

	if !r.Add(a) || !r.Add(b) {
		t.Fatalf("expected both clients to be added")
	}
	if r.Add(a) {
		t.Fatalf("expected duplicate add to be rejected")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 clients, got %d", r.Len())
	}

	info, conn, ok := r.Remove(a.Handle)
	if !ok || conn == nil || info.Handle != a.Handle {
		t.Fatalf("expected to remove client a, got %+v ok=%v", info, ok)
	}
	if _, _, ok := r.Remove(a.Handle); ok {
		t.Fatalf("expected second removal to report missing client")
	}

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Handle != b.Handle {
		t.Fatalf("expected only client b left, got %+v", snap)
	}
	if snap[0].State != StateConnecting {
		t.Fatalf("expected new client to be connecting, got %s", snap[0].State)
	}
}

func TestRegistryPromoteAssignsIncreasingIDs(t *testing.T) {
	r := NewRegistry(0)
	a, _ := newFakeClient()
	b, _ := newFakeClient()
	r.Add(a)
	r.Add(b)

	idB, _, ok := r.Promote(b.Handle, "bob")
	if !ok {
		t.Fatalf("expected promote to succeed")
	}
	idA, _, _ := r.Promote(a.Handle, "alice")
	if idA <= idB {
		t.Fatalf("expected ids to increase in handshake order, got b=%d a=%d", idB, idA)
	}

	again, written, _ := r.Promote(b.Handle, "renamed")
	if again != idB {
		t.Fatalf("expected connected client to keep id %d, got %d", idB, again)
	}
	if written != 0 {
		t.Fatalf("expected no second ack, wrote %d bytes", written)
	}
	info, _ := r.Info(b.Handle)
	if info.Name != "bob" || info.State != StateConnected {
		t.Fatalf("unexpected client after second promote: %+v", info)
	}

	if _, _, ok := r.Promote(uuid.New(), "ghost"); ok {
		t.Fatalf("expected promote of unknown handle to fail")
	}
}

func TestRegistryBroadcastSkipsConnectingAndExcluded(t *testing.T) {
	r := NewRegistry(0)
	a, ca, _ := connectFake(t, r, "a")
	_, cb, _ := connectFake(t, r, "b")
	c, cc := newFakeClient()
	r.Add(c)

	frame := protocol.MustMarshal(protocol.Attack{ID: 0})
	n, written := r.Broadcast(frame, a.Handle)
	if n != 1 || written != len(frame) {
		t.Fatalf("expected one recipient and %d bytes, got %d / %d", len(frame), n, written)
	}
	if got := ca.received(t); len(got) != 0 {
		t.Fatalf("excluded client received %v", got)
	}
	if got := cc.received(t); len(got) != 0 {
		t.Fatalf("connecting client received %v", got)
	}
	got := cb.received(t)
	if len(got) != 1 || got[0] != (protocol.Attack{ID: 0}) {
		t.Fatalf("expected b to receive the attack, got %v", got)
	}
}

func TestRegistryBroadcastContinuesPastFailedWrite(t *testing.T) {
	r := NewRegistry(0)
	_, ca, _ := connectFake(t, r, "a")
	_, cb, _ := connectFake(t, r, "b")
	_ = ca.Close()

	n, _ := r.Broadcast(protocol.MustMarshal(protocol.GameReset{}), uuid.Nil)
	if n != 1 {
		t.Fatalf("expected one successful recipient, got %d", n)
	}
	if len(cb.received(t)) != 1 {
		t.Fatalf("expected b to still receive the frame")
	}
	if r.Len() != 2 {
		t.Fatalf("broadcast must not remove clients, got %d", r.Len())
	}
}

func TestRegistryRosterInConnectionOrder(t *testing.T) {
	r := NewRegistry(0)
	a, _ := newFakeClient()
	b, _ := newFakeClient()
	c, _ := newFakeClient()
	d, _ := newFakeClient()
	for _, cl := range []*Client{a, b, c, d} {
		r.Add(cl)
	}
	// 握手顺序与接入顺序不同，花名册仍按接入顺序
	r.Promote(c.Handle, "carol")
	r.Promote(a.Handle, "alice")
	r.Promote(d.Handle, "dave")

	roster := r.Roster(d.Handle)
	if len(roster) != 2 {
		t.Fatalf("expected 2 roster entries, got %d", len(roster))
	}
	if roster[0].Name != "alice" || roster[1].Name != "carol" {
		t.Fatalf("expected alice then carol, got %+v", roster)
	}
}

func TestRegistryMarkDead(t *testing.T) {
	r := NewRegistry(0)
	a, _ := newFakeClient()
	b, _ := newFakeClient()
	r.Add(a)
	r.Add(b)
	id, _, _ := r.Promote(a.Handle, "a")

	if !r.MarkDead(id) {
		t.Fatalf("expected connected client %d to be marked dead", id)
	}
	if info, _ := r.Info(a.Handle); !info.IsDead {
		t.Fatalf("expected client to be dead")
	}
	if info, _ := r.Info(b.Handle); info.IsDead {
		t.Fatalf("expected other client to stay alive")
	}

	// 只有 Connecting 客户端时，其零值 id 不能匹配
	lone := NewRegistry(0)
	c, _ := newFakeClient()
	lone.Add(c)
	if lone.MarkDead(0) {
		t.Fatalf("connecting client must not be marked dead")
	}
	if r.MarkDead(999) {
		t.Fatalf("expected unknown id to be ignored")
	}
}

func TestRegistryResetIfFewerAlive(t *testing.T) {
	r := NewRegistry(0)
	var conns []*fakeConn
	var ids []int32
	for _, name := range []string{"a", "b", "c"} {
		_, fc, id := connectFake(t, r, name)
		conns = append(conns, fc)
		ids = append(ids, id)
	}
	reset := protocol.MustMarshal(protocol.GameReset{})

	if res := r.ResetIfFewerAlive(2, reset); res.Reset || res.Alive != 3 {
		t.Fatalf("expected no reset with 3 alive, got %+v", res)
	}

	r.MarkDead(ids[0])
	if res := r.ResetIfFewerAlive(2, reset); res.Reset {
		t.Fatalf("expected no reset with 2 alive, got %+v", res)
	}

	r.MarkDead(ids[1])
	res := r.ResetIfFewerAlive(2, reset)
	if !res.Reset || res.Alive != 1 || res.Recipients != 3 {
		t.Fatalf("expected reset to all 3 clients with 1 alive, got %+v", res)
	}
	for i, fc := range conns {
		got := fc.received(t)
		if len(got) != 1 || got[0] != (protocol.GameReset{}) {
			t.Fatalf("client %d: expected exactly one GameReset, got %v", i, got)
		}
	}
	for _, info := range r.Snapshot() {
		if info.IsDead {
			t.Fatalf("expected death flags cleared, %s still dead", info.Name)
		}
	}
}

func TestRegistryResetCheckRepeatable(t *testing.T) {
	r := NewRegistry(0)
	_, fc, _ := connectFake(t, r, "solo")
	reset := protocol.MustMarshal(protocol.GameReset{})

	first := r.ResetIfFewerAlive(2, reset)
	second := r.ResetIfFewerAlive(2, reset)
	if !first.Reset || !second.Reset {
		t.Fatalf("expected both checks to reset, got %+v / %+v", first, second)
	}
	if got := fc.received(t); len(got) != 2 {
		t.Fatalf("expected two redundant GameReset frames, got %d", len(got))
	}
	if r.Len() != 1 {
		t.Fatalf("expected registry unchanged, got %d clients", r.Len())
	}
}

func TestRegistryPromoteWritesAckFirst(t *testing.T) {
	r := NewRegistry(0)
	_, other, _ := connectFake(t, r, "other")
	c, fc := newFakeClient()
	r.Add(c)

	id, written, ok := r.Promote(c.Handle, "late")
	if !ok {
		t.Fatalf("expected promote to succeed")
	}
	r.ResetIfFewerAlive(3, protocol.MustMarshal(protocol.GameReset{}))

	got := fc.received(t)
	if len(got) != 2 || got[0] != (protocol.HandshakeAck{ID: id}) || got[1] != (protocol.GameReset{}) {
		t.Fatalf("expected ack before reset, got %v", got)
	}
	if written != len(protocol.MustMarshal(protocol.HandshakeAck{ID: id})) {
		t.Fatalf("unexpected ack size %d", written)
	}
	if got := other.received(t); len(got) != 1 || got[0] != (protocol.GameReset{}) {
		t.Fatalf("expected only a reset for the other client, got %v", got)
	}
}

func TestRegistryRemoveClearsSlot(t *testing.T) {
	r := NewRegistry(0)
	a, _ := newFakeClient()
	b, _ := newFakeClient()
	r.Add(a)
	r.Add(b)
	r.Remove(a.Handle)

	r.mu.Lock()
	defer r.mu.Unlock()
	tail := r.clients[:cap(r.clients)][len(r.clients):]
	for i, c := range tail {
		if c != nil {
			t.Fatalf("removed client still referenced at tail slot %d", i)
		}
	}
}
