package protocol

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// frameReader 按字段从流中读取，首个错误之后的读取全部短路
type frameReader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (fr *frameReader) read(n int) []byte {
	if fr.err != nil {
		return fr.buf[:n]
	}
	if _, err := io.ReadFull(fr.r, fr.buf[:n]); err != nil {
		fr.err = err
	}
	return fr.buf[:n]
}

func (fr *frameReader) u16() uint16 { return order.Uint16(fr.read(2)) }
func (fr *frameReader) i16() int16  { return int16(fr.u16()) }
func (fr *frameReader) i32() int32  { return int32(order.Uint32(fr.read(4))) }
func (fr *frameReader) f32() float32 {
	return math.Float32frombits(order.Uint32(fr.read(4)))
}

func (fr *frameReader) vec2() Vec2 {
	x := fr.f32()
	y := fr.f32()
	return Vec2{X: x, Y: y}
}

func (fr *frameReader) str() string {
	n := int(fr.u16())
	if fr.err != nil {
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(fr.r, b); err != nil {
		fr.err = err
		return ""
	}
	return string(b)
}

// tag 读取标签；标签之后的 EOF 视为截断帧
func (fr *frameReader) tag() (Type, error) {
	t := Type(fr.u16())
	if fr.err != nil {
		return 0, fr.err
	}
	if t >= typeMax {
		return t, fmt.Errorf("%w: %d", ErrUnknownType, uint16(t))
	}
	return t, nil
}

func (fr *frameReader) finish(m Message) (Message, error) {
	if fr.err != nil {
		if errors.Is(fr.err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fr.err
	}
	return m, nil
}

// ReadClient 从流中读取一帧客户端→服务端消息。
// 仅服务端下发的类型（Connected/Disconnected/GameReset）按服务端布局解码，
// 由调用方决定是否忽略。流在帧边界处结束时返回 io.EOF。
func ReadClient(r io.Reader) (Message, error) {
	fr := &frameReader{r: r}
	t, err := fr.tag()
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeHandshake:
		v := fr.u16()
		return fr.finish(Handshake{Version: v, Name: fr.str()})
	case TypeSpacial:
		p := fr.vec2()
		return fr.finish(SpacialInfo{Position: p, Velocity: fr.vec2()})
	case TypeDeath:
		return fr.finish(Death{Target: fr.i32()})
	case TypeAttack:
		return AttackAnim{}, nil
	case TypeCarryChange:
		return fr.finish(CarryChange{Carry: fr.i16()})
	case TypeStunned:
		return fr.finish(Stunned{Position: fr.vec2()})
	default:
		return readServerOnly(fr, t)
	}
}

// ReadServer 从流中读取一帧服务端→客户端消息
func ReadServer(r io.Reader) (Message, error) {
	fr := &frameReader{r: r}
	t, err := fr.tag()
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeHandshake:
		return fr.finish(HandshakeAck{ID: fr.i32()})
	case TypeSpacial:
		id := fr.i32()
		p := fr.vec2()
		return fr.finish(Spacial{ID: id, Position: p, Velocity: fr.vec2()})
	case TypeDeath:
		return fr.finish(Death{Target: fr.i32()})
	case TypeAttack:
		return fr.finish(Attack{ID: fr.i32()})
	case TypeCarryChange:
		id := fr.i32()
		return fr.finish(CarryChanged{ID: id, Carry: fr.i16()})
	case TypeStunned:
		id := fr.i32()
		return fr.finish(PlayerStunned{ID: id, Position: fr.vec2()})
	default:
		return readServerOnly(fr, t)
	}
}

func readServerOnly(fr *frameReader, t Type) (Message, error) {
	switch t {
	case TypeConnected:
		id := fr.i32()
		return fr.finish(Connected{ID: id, Name: fr.str()})
	case TypeDisconnected:
		return fr.finish(Disconnected{ID: fr.i32()})
	case TypeGameReset:
		return GameReset{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint16(t))
}
