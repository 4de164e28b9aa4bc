// Package protocol 定义中继服务与游戏客户端之间的二进制帧格式。
// 每一帧以 2 字节消息类型开头，后接该类型的固定/变长字段，全部使用大端字节序。
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Version 服务端支持的协议版本，客户端握手版本不一致即被拒绝
const Version uint16 = 3

// MaxNameLength 玩家名最大字符数（按 rune 计）
const MaxNameLength = 20

// Type 消息类型标签
type Type uint16

const (
	TypeHandshake Type = iota
	TypeConnected
	TypeDisconnected
	TypeSpacial
	TypeDeath
	TypeAttack
	TypeCarryChange
	TypeStunned
	TypeGameReset

	typeMax
)

var typeNames = [...]string{
	TypeHandshake:    "Handshake",
	TypeConnected:    "Connected",
	TypeDisconnected: "Disconnected",
	TypeSpacial:      "Spacial",
	TypeDeath:        "Death",
	TypeAttack:       "Attack",
	TypeCarryChange:  "CarryChange",
	TypeStunned:      "Stunned",
	TypeGameReset:    "GameReset",
}

func (t Type) String() string {
	if t < typeMax {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint16(t))
}

var (
	// ErrUnknownType 标签不在已知范围内，流无法继续分帧
	ErrUnknownType = errors.New("protocol: unknown message type")
	// ErrStringTooLong 字符串超过 2 字节长度前缀可表示的范围
	ErrStringTooLong = errors.New("protocol: string too long")
)

var order = binary.BigEndian

// Vec2 二维向量
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Message 一帧消息。两个方向共享同一组标签，但字段布局不同，
// 因此客户端→服务端与服务端→客户端分别使用不同的 Go 类型。
type Message interface {
	Type() Type
	appendPayload(b []byte) ([]byte, error)
}

// TruncateName 截断到 MaxNameLength 个字符
func TruncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	n := 0
	for i := range name {
		if n == MaxNameLength {
			return name[:i]
		}
		n++
	}
	return name
}

// Marshal 编码一整帧（标签 + 负载）
func Marshal(m Message) ([]byte, error) {
	b := make([]byte, 0, 32)
	b = order.AppendUint16(b, uint16(m.Type()))
	b, err := m.appendPayload(b)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Type(), err)
	}
	return b, nil
}

// MustMarshal 用于负载不含字符串的消息，编码不会失败
func MustMarshal(m Message) []byte {
	b, err := Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}
