package buffer

import (
	"strings"
	"time"

	"github.com/danmuck/libquassel/internal/ingest"
)

// MessageType is the Quassel message type bitmask.
type MessageType uint32

const (
	MessagePlain        MessageType = 0x00001
	MessageNotice       MessageType = 0x00002
	MessageAction       MessageType = 0x00004
	MessageNick         MessageType = 0x00008
	MessageMode         MessageType = 0x00010
	MessageJoin         MessageType = 0x00020
	MessagePart         MessageType = 0x00040
	MessageQuit         MessageType = 0x00080
	MessageKick         MessageType = 0x00100
	MessageKill         MessageType = 0x00200
	MessageServer       MessageType = 0x00400
	MessageInfo         MessageType = 0x00800
	MessageError        MessageType = 0x01000
	MessageDayChange    MessageType = 0x02000
	MessageTopic        MessageType = 0x04000
	MessageNetsplitJoin MessageType = 0x08000
	MessageNetsplitQuit MessageType = 0x10000
	MessageInvite       MessageType = 0x20000
)

// MessageFlag is the Quassel message flag bitmask.
type MessageFlag uint8

const (
	FlagNone       MessageFlag = 0x00
	FlagSelf       MessageFlag = 0x01
	FlagHighlight  MessageFlag = 0x02
	FlagRedirected MessageFlag = 0x04
	FlagServerMsg  MessageFlag = 0x08
	FlagBacklog    MessageFlag = 0x80
)

// Message is one decoded chat line.
type Message struct {
	ingest.Extra `qt:"-"`

	ID        int         `qt:"id"`
	Timestamp time.Time   `qt:"timestamp"`
	Type      MessageType `qt:"type"`
	Flags     MessageFlag `qt:"flags"`
	Buffer    Info        `qt:"bufferInfo"`
	Sender    string      `qt:"sender"`
	Content   string      `qt:"content"`
}

// NewMessage builds a message from its attribute map.
func NewMessage(fields map[string]any) (*Message, error) {
	m := &Message{}
	if err := ingest.Devour(m, fields); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) Is(t MessageType) bool      { return m.Type&t != 0 }
func (m *Message) HasFlag(f MessageFlag) bool { return m.Flags&f != 0 }
func (m *Message) IsSelf() bool               { return m.HasFlag(FlagSelf) }
func (m *Message) IsHighlight() bool          { return m.HasFlag(FlagHighlight) }
func (m *Message) IsBacklog() bool            { return m.HasFlag(FlagBacklog) }

// SenderNick is the nick part of the sender mask.
func (m *Message) SenderNick() string {
	nick, _, _ := strings.Cut(m.Sender, "!")
	return nick
}
