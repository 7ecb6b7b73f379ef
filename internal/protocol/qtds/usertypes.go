package qtds

import (
	"fmt"
	"sync"
	"time"
)

// UserValue is implemented by Go types that encode as a named Qt user type.
type UserValue interface {
	QtTypeName() string
	MarshalQt(e *Encoder) error
}

// UserDecodeFunc reads the body of a user type (after its name).
type UserDecodeFunc func(d *Decoder) (any, error)

var (
	userMu    sync.RWMutex
	userTypes = map[string]UserDecodeFunc{}
)

// RegisterUserType installs a decoder for the named user type, replacing any
// previous registration.
func RegisterUserType(name string, fn UserDecodeFunc) {
	userMu.Lock()
	userTypes[name] = fn
	userMu.Unlock()
}

func (d *Decoder) readUserType(name string) (any, error) {
	userMu.RLock()
	fn, ok := userTypes[name]
	userMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUserType, name)
	}
	v, err := fn(d)
	if err != nil {
		return nil, fmt.Errorf("user type %s: %w", name, err)
	}
	return v, nil
}

type (
	BufferID   int32
	NetworkID  int32
	IdentityID int32
	MsgID      int32
	PeerPtr    int64
)

func (BufferID) QtTypeName() string   { return "BufferId" }
func (NetworkID) QtTypeName() string  { return "NetworkId" }
func (IdentityID) QtTypeName() string { return "IdentityId" }
func (MsgID) QtTypeName() string      { return "MsgId" }
func (PeerPtr) QtTypeName() string    { return "PeerPtr" }

func (v BufferID) MarshalQt(e *Encoder) error   { e.WriteInt32(int32(v)); return nil }
func (v NetworkID) MarshalQt(e *Encoder) error  { e.WriteInt32(int32(v)); return nil }
func (v IdentityID) MarshalQt(e *Encoder) error { e.WriteInt32(int32(v)); return nil }
func (v MsgID) MarshalQt(e *Encoder) error      { e.WriteInt32(int32(v)); return nil }
func (v PeerPtr) MarshalQt(e *Encoder) error    { e.WriteInt64(int64(v)); return nil }

// BufferInfo is the wire form of a buffer descriptor.
type BufferInfo struct {
	ID      BufferID
	Network NetworkID
	Type    int16
	Group   uint32
	Name    []byte
}

func (BufferInfo) QtTypeName() string { return "BufferInfo" }

func (b BufferInfo) MarshalQt(e *Encoder) error {
	e.WriteInt32(int32(b.ID))
	e.WriteInt32(int32(b.Network))
	e.WriteInt16(b.Type)
	e.WriteUint32(b.Group)
	e.WriteByteArray(b.Name)
	return nil
}

// Fields exposes the descriptor as an attribute map for ingest.
func (b BufferInfo) Fields() map[string]any {
	return map[string]any{
		"id":      int(b.ID),
		"network": int(b.Network),
		"type":    int(b.Type),
		"group":   int(b.Group),
		"name":    string(b.Name),
	}
}

func readBufferInfo(d *Decoder) (BufferInfo, error) {
	var (
		b   BufferInfo
		err error
		raw int32
	)
	if raw, err = d.ReadInt32(); err != nil {
		return b, err
	}
	b.ID = BufferID(raw)
	if raw, err = d.ReadInt32(); err != nil {
		return b, err
	}
	b.Network = NetworkID(raw)
	if b.Type, err = d.ReadInt16(); err != nil {
		return b, err
	}
	if b.Group, err = d.ReadUint32(); err != nil {
		return b, err
	}
	b.Name, err = d.ReadByteArray()
	return b, err
}

// Message is the wire form of a chat line; Timestamp has second precision.
type Message struct {
	ID        MsgID
	Timestamp time.Time
	Type      uint32
	Flags     uint8
	Buffer    BufferInfo
	Sender    []byte
	Content   []byte
}

func (Message) QtTypeName() string { return "Message" }

func (m Message) MarshalQt(e *Encoder) error {
	e.WriteInt32(int32(m.ID))
	e.WriteUint32(uint32(m.Timestamp.Unix()))
	e.WriteUint32(m.Type)
	e.WriteUint8(m.Flags)
	if err := m.Buffer.MarshalQt(e); err != nil {
		return err
	}
	e.WriteByteArray(m.Sender)
	e.WriteByteArray(m.Content)
	return nil
}

// Fields exposes the message as an attribute map for ingest.
func (m Message) Fields() map[string]any {
	return map[string]any{
		"id":         int(m.ID),
		"timestamp":  m.Timestamp,
		"type":       int(m.Type),
		"flags":      int(m.Flags),
		"bufferInfo": m.Buffer.Fields(),
		"sender":     string(m.Sender),
		"content":    string(m.Content),
	}
}

func readMessage(d *Decoder) (any, error) {
	var m Message
	id, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	m.ID = MsgID(id)
	ts, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	m.Timestamp = time.Unix(int64(ts), 0).UTC()
	if m.Type, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Flags, err = d.ReadUint8(); err != nil {
		return nil, err
	}
	if m.Buffer, err = readBufferInfo(d); err != nil {
		return nil, err
	}
	if m.Sender, err = d.ReadByteArray(); err != nil {
		return nil, err
	}
	if m.Content, err = d.ReadByteArray(); err != nil {
		return nil, err
	}
	return m, nil
}

// UserMap is a user type whose body is a plain QVariantMap, e.g. Identity or
// NetworkInfo.
type UserMap struct {
	Name   string
	Fields map[string]any
}

func (u UserMap) QtTypeName() string { return u.Name }

func (u UserMap) MarshalQt(e *Encoder) error {
	return e.WriteMap(u.Fields)
}

func mapUserType(name string) UserDecodeFunc {
	return func(d *Decoder) (any, error) {
		m, err := d.ReadMap()
		if err != nil {
			return nil, err
		}
		return UserMap{Name: name, Fields: m}, nil
	}
}

func init() {
	RegisterUserType("BufferId", func(d *Decoder) (any, error) {
		v, err := d.ReadInt32()
		return BufferID(v), err
	})
	RegisterUserType("NetworkId", func(d *Decoder) (any, error) {
		v, err := d.ReadInt32()
		return NetworkID(v), err
	})
	RegisterUserType("IdentityId", func(d *Decoder) (any, error) {
		v, err := d.ReadInt32()
		return IdentityID(v), err
	})
	RegisterUserType("MsgId", func(d *Decoder) (any, error) {
		v, err := d.ReadInt32()
		return MsgID(v), err
	})
	RegisterUserType("PeerPtr", func(d *Decoder) (any, error) {
		v, err := d.ReadInt64()
		return PeerPtr(v), err
	})
	RegisterUserType("BufferInfo", func(d *Decoder) (any, error) {
		return readBufferInfo(d)
	})
	RegisterUserType("Message", readMessage)
	for _, name := range []string{"Identity", "NetworkInfo", "Network::Server"} {
		RegisterUserType(name, mapUserType(name))
	}
}
