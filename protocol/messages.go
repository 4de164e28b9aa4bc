package protocol

import (
	"math"
)

// 客户端 → 服务端

// Handshake 客户端首帧：协议版本与显示名
type Handshake struct {
	Version uint16
	Name    string
}

// SpacialInfo 客户端上报自身位置与速度
type SpacialInfo struct {
	Position Vec2
	Velocity Vec2
}

// AttackAnim 客户端播放攻击动画
type AttackAnim struct{}

// CarryChange 客户端携带状态变化
type CarryChange struct {
	Carry int16
}

// Stunned 客户端在某位置被击晕
type Stunned struct {
	Position Vec2
}

// 双向

// Death 目标玩家死亡，两个方向布局相同
type Death struct {
	Target int32
}

// 服务端 → 客户端

// HandshakeAck 握手确认，携带分配的 id
type HandshakeAck struct {
	ID int32
}

// Connected 某玩家已加入
type Connected struct {
	ID   int32
	Name string
}

// Disconnected 某玩家已离开
type Disconnected struct {
	ID int32
}

// Spacial 转发的位置与速度
type Spacial struct {
	ID       int32
	Position Vec2
	Velocity Vec2
}

// Attack 转发的攻击动画
type Attack struct {
	ID int32
}

// CarryChanged 转发的携带状态
type CarryChanged struct {
	ID    int32
	Carry int16
}

// PlayerStunned 转发的击晕事件
type PlayerStunned struct {
	ID       int32
	Position Vec2
}

// GameReset 本局结束并重置
type GameReset struct{}

func (Handshake) Type() Type { return TypeHandshake }
func (SpacialInfo) Type() Type { return TypeSpacial }
func (AttackAnim) Type() Type { return TypeAttack }
func (CarryChange) Type() Type { return TypeCarryChange }
func (Stunned) Type() Type { return TypeStunned }
func (Death) Type() Type { return TypeDeath }
func (HandshakeAck) Type() Type { return TypeHandshake }
func (Connected) Type() Type { return TypeConnected }
func (Disconnected) Type() Type { return TypeDisconnected }
func (Spacial) Type() Type { return TypeSpacial }
func (Attack) Type() Type { return TypeAttack }
func (CarryChanged) Type() Type { return TypeCarryChange }
func (PlayerStunned) Type() Type { return TypeStunned }
func (GameReset) Type() Type { return TypeGameReset }

func (m Handshake) appendPayload(b []byte) ([]byte, error) {
	b = order.AppendUint16(b, m.Version)
	return appendString(b, m.Name)
}

func (m SpacialInfo) appendPayload(b []byte) ([]byte, error) {
	b = appendVec2(b, m.Position)
	return appendVec2(b, m.Velocity), nil
}

func (AttackAnim) appendPayload(b []byte) ([]byte, error) { return b, nil }

func (m CarryChange) appendPayload(b []byte) ([]byte, error) {
	return order.AppendUint16(b, uint16(m.Carry)), nil
}

func (m Stunned) appendPayload(b []byte) ([]byte, error) {
	return appendVec2(b, m.Position), nil
}

func (m Death) appendPayload(b []byte) ([]byte, error) {
	return order.AppendUint32(b, uint32(m.Target)), nil
}

func (m HandshakeAck) appendPayload(b []byte) ([]byte, error) {
	return order.AppendUint32(b, uint32(m.ID)), nil
}

func (m Connected) appendPayload(b []byte) ([]byte, error) {
	b = order.AppendUint32(b, uint32(m.ID))
	return appendString(b, m.Name)
}

func (m Disconnected) appendPayload(b []byte) ([]byte, error) {
	return order.AppendUint32(b, uint32(m.ID)), nil
}

func (m Spacial) appendPayload(b []byte) ([]byte, error) {
	b = order.AppendUint32(b, uint32(m.ID))
	b = appendVec2(b, m.Position)
	return appendVec2(b, m.Velocity), nil
}

func (m Attack) appendPayload(b []byte) ([]byte, error) {
	return order.AppendUint32(b, uint32(m.ID)), nil
}

func (m CarryChanged) appendPayload(b []byte) ([]byte, error) {
	b = order.AppendUint32(b, uint32(m.ID))
	return order.AppendUint16(b, uint16(m.Carry)), nil
}

func (m PlayerStunned) appendPayload(b []byte) ([]byte, error) {
	b = order.AppendUint32(b, uint32(m.ID))
	return appendVec2(b, m.Position), nil
}

func (GameReset) appendPayload(b []byte) ([]byte, error) { return b, nil }

func appendVec2(b []byte, v Vec2) []byte {
	b = order.AppendUint32(b, math.Float32bits(v.X))
	return order.AppendUint32(b, math.Float32bits(v.Y))
}

func appendString(b []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, ErrStringTooLong
	}
	b = order.AppendUint16(b, uint16(len(s)))
	return append(b, s...), nil
}
