// Package buffer models conversation surfaces (channel, query and status
// buffers) with their message history and membership roster, and the
// per-connection collection that owns them.
package buffer

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/danmuck/libquassel/internal/ingest"
	logs "github.com/danmuck/libquassel/internal/logging"
	"github.com/danmuck/libquassel/internal/protocol/qtds"
	"github.com/danmuck/libquassel/internal/user"
)

// Type is the buffer type bitmask.
type Type int

const (
	TypeInvalid Type = 0x00
	TypeStatus  Type = 0x01
	TypeChannel Type = 0x02
	TypeQuery   Type = 0x04
	TypeGroup   Type = 0x08
)

var ErrInvalidMessageID = errors.New("buffer: invalid message id")

// Info is the BufferInfo projection of a buffer.
type Info struct {
	ID      int    `qt:"id"`
	Network int    `qt:"network"`
	Type    Type   `qt:"type"`
	Group   int    `qt:"group"`
	Name    string `qt:"name"`
}

// InfoFromWire converts the decoded BufferInfo user type.
func InfoFromWire(w qtds.BufferInfo) Info {
	return Info{
		ID:      int(w.ID),
		Network: int(w.Network),
		Type:    Type(w.Type),
		Group:   int(w.Group),
		Name:    string(w.Name),
	}
}

// Wire converts back to the encodable BufferInfo user type.
func (i Info) Wire() qtds.BufferInfo {
	return qtds.BufferInfo{
		ID:      qtds.BufferID(i.ID),
		Network: qtds.NetworkID(i.Network),
		Type:    int16(i.Type),
		Group:   uint32(i.Group),
		Name:    []byte(i.Name),
	}
}

// Member is one roster entry. The user is not owned by the buffer.
type Member struct {
	User  *user.User
	Modes string
}

// Buffer is one conversation surface.
//
// Message ids are unique; FirstID and LastID always bound the current
// message set.
type Buffer struct {
	ingest.Extra `qt:"-"`

	ID      int    `qt:"-"`
	Network int    `qt:"network"`
	Type    Type   `qt:"type"`
	Group   int    `qt:"group"`
	Name    string `qt:"name"`
	Active  bool   `qt:"-"`

	status   bool
	users    map[string]*Member
	messages map[int]*Message
	first    int
	last     int
}

// New creates a buffer with id and an optional snapshot. The id argument
// wins over any id in data.
func New(id int, data map[string]any) *Buffer {
	b := &Buffer{
		ID:       id,
		users:    make(map[string]*Member),
		messages: make(map[int]*Message),
	}
	if err := ingest.Devour(b, data); err != nil {
		logs.Warnf("buffer.New id=%d err=%v", id, err)
	}
	b.status = b.Type == TypeStatus
	return b
}

// FromInfo creates a buffer from a decoded BufferInfo.
func FromInfo(info Info) *Buffer {
	b := New(info.ID, nil)
	b.Network = info.Network
	b.Type = info.Type
	b.Group = info.Group
	b.Name = info.Name
	b.status = info.Type == TypeStatus
	return b
}

// Update applies an attribute map.
func (b *Buffer) Update(data map[string]any) error {
	if err := ingest.Devour(b, data); err != nil {
		logs.Warnf("buffer.Update id=%d err=%v", b.ID, err)
		return err
	}
	return nil
}

func (b *Buffer) SetActive(active bool) {
	b.Active = active
}

func (b *Buffer) SetName(name string) {
	b.Name = name
}

func (b *Buffer) IsStatusBuffer() bool {
	return b.status
}

func (b *Buffer) SetStatusBuffer(status bool) {
	b.status = status
}

// IsChannel reports whether the name is syntactically a channel.
func (b *Buffer) IsChannel() bool {
	return IsChannelName(b.Name)
}

func IsChannelName(name string) bool {
	return name != "" && strings.ContainsRune("#&+!", rune(name[0]))
}

// BufferInfo returns the {id, network, type, group, name} projection.
func (b *Buffer) BufferInfo() Info {
	return Info{
		ID:      b.ID,
		Network: b.Network,
		Type:    b.Type,
		Group:   b.Group,
		Name:    b.Name,
	}
}

// Roster.

// AddUser adds u with the given mode letters, replacing any entry for the
// same nick. A nil user or empty nick is ignored.
func (b *Buffer) AddUser(u *user.User, modes string) {
	if u == nil || u.Nick() == "" {
		logs.Warnf("buffer.AddUser id=%d ignored user without nick", b.ID)
		return
	}
	b.users[u.Nick()] = &Member{User: u, Modes: modes}
}

func (b *Buffer) member(nick, op string) (*Member, bool) {
	if nick == "" {
		logs.Warnf("buffer.%s id=%d ignored empty nick", op, b.ID)
		return nil, false
	}
	m, ok := b.users[nick]
	if !ok {
		logs.Debugf("buffer.%s id=%d unknown nick=%q", op, b.ID, nick)
	}
	return m, ok
}

// AddUserMode appends mode to the member's mode string when absent.
func (b *Buffer) AddUserMode(nick, mode string) {
	m, ok := b.member(nick, "AddUserMode")
	if !ok || mode == "" {
		return
	}
	if !strings.Contains(m.Modes, mode) {
		m.Modes += mode
	}
}

// RemoveUserMode drops the first occurrence of mode; absent modes are a no-op.
func (b *Buffer) RemoveUserMode(nick, mode string) {
	m, ok := b.member(nick, "RemoveUserMode")
	if !ok || mode == "" {
		return
	}
	m.Modes = strings.Replace(m.Modes, mode, "", 1)
}

func (b *Buffer) HasMode(nick, mode string) bool {
	m, ok := b.users[nick]
	return ok && mode != "" && strings.Contains(m.Modes, mode)
}

func (b *Buffer) IsOp(nick string) bool     { return b.HasMode(nick, "o") }
func (b *Buffer) IsHalfOp(nick string) bool { return b.HasMode(nick, "h") }
func (b *Buffer) IsOwner(nick string) bool  { return b.HasMode(nick, "q") }
func (b *Buffer) IsAdmin(nick string) bool  { return b.HasMode(nick, "a") }
func (b *Buffer) IsVoiced(nick string) bool { return b.HasMode(nick, "v") }

func (b *Buffer) HasUser(nick string) bool {
	if nick == "" {
		logs.Warnf("buffer.HasUser id=%d ignored empty nick", b.ID)
		return false
	}
	_, ok := b.users[nick]
	return ok
}

// Member returns the roster entry for nick.
func (b *Buffer) Member(nick string) (*Member, bool) {
	m, ok := b.users[nick]
	return m, ok
}

func (b *Buffer) RemoveUser(nick string) {
	if _, ok := b.member(nick, "RemoveUser"); ok {
		delete(b.users, nick)
	}
}

// Nicks returns the roster nicks in sorted order.
func (b *Buffer) Nicks() []string {
	out := make([]string, 0, len(b.users))
	for nick := range b.users {
		out = append(out, nick)
	}
	slices.Sort(out)
	return out
}

// UpdateUserMaps moves the roster entry stored under oldNick to u, keyed by
// u's nick, keeping its channel modes.
func (b *Buffer) UpdateUserMaps(oldNick string, u *user.User) {
	m, ok := b.member(oldNick, "UpdateUserMaps")
	if !ok {
		return
	}
	if u == nil || u.Nick() == "" {
		logs.Warnf("buffer.UpdateUserMaps id=%d ignored user without nick", b.ID)
		return
	}
	delete(b.users, oldNick)
	b.users[u.Nick()] = &Member{User: u, Modes: m.Modes}
}

// History.

// AddMessage stores a message built from its attribute map and returns it.
// It returns nil when the id is missing or malformed or already present.
func (b *Buffer) AddMessage(fields map[string]any) *Message {
	id, err := parseID(fields["id"])
	if err != nil {
		logs.Warnf("buffer.AddMessage buffer=%d err=%v", b.ID, err)
		return nil
	}
	if _, dup := b.messages[id]; dup {
		return nil
	}
	msg, err := NewMessage(fields)
	if err != nil {
		logs.Warnf("buffer.AddMessage buffer=%d id=%d err=%v", b.ID, id, err)
		return nil
	}
	msg.ID = id
	if len(b.messages) == 0 {
		b.first, b.last = id, id
	} else {
		b.first = min(b.first, id)
		b.last = max(b.last, id)
	}
	b.messages[id] = msg
	return msg
}

// AddWireMessage stores a decoded Message user type.
func (b *Buffer) AddWireMessage(m qtds.Message) *Message {
	return b.AddMessage(m.Fields())
}

func parseID(raw any) (int, error) {
	switch v := raw.(type) {
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, nil
		}
	case []byte:
		return parseID(string(v))
	case float64:
		if v == math.Trunc(v) && math.Abs(v) <= math.MaxInt32 {
			return int(v), nil
		}
	case nil:
	default:
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return int(rv.Int()), nil
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			if u := rv.Uint(); u <= math.MaxInt {
				return int(u), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %v (%T)", ErrInvalidMessageID, raw, raw)
}

func (b *Buffer) Len() int {
	return len(b.messages)
}

func (b *Buffer) Message(id int) (*Message, bool) {
	m, ok := b.messages[id]
	return m, ok
}

// Messages returns the history ordered by id.
func (b *Buffer) Messages() []*Message {
	ids := b.sortedIDs()
	out := make([]*Message, len(ids))
	for i, id := range ids {
		out[i] = b.messages[id]
	}
	return out
}

func (b *Buffer) sortedIDs() []int {
	ids := make([]int, 0, len(b.messages))
	for id := range b.messages {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FirstID returns the smallest message id; ok is false when empty.
func (b *Buffer) FirstID() (int, bool) {
	return b.first, len(b.messages) > 0
}

func (b *Buffer) LastID() (int, bool) {
	return b.last, len(b.messages) > 0
}

func (b *Buffer) FirstMessage() *Message {
	if len(b.messages) == 0 {
		return nil
	}
	return b.messages[b.first]
}

func (b *Buffer) LastMessage() *Message {
	if len(b.messages) == 0 {
		return nil
	}
	return b.messages[b.last]
}

// IsLast reports whether id is the newest message id. Malformed ids are
// never last.
func (b *Buffer) IsLast(id any) bool {
	n, err := parseID(id)
	return err == nil && len(b.messages) > 0 && n == b.last
}

func (b *Buffer) ClearMessages() {
	b.messages = make(map[int]*Message)
	b.first, b.last = 0, 0
}

// DeleteMessage removes one message. With at most one message stored the
// history is cleared regardless of id.
func (b *Buffer) DeleteMessage(id int) {
	if len(b.messages) <= 1 {
		b.ClearMessages()
		return
	}
	delete(b.messages, id)
	b.recomputeBounds()
}

// TrimMessages keeps the n messages with the largest ids. n <= 0 clears the
// history; n >= Len is a no-op.
func (b *Buffer) TrimMessages(n int) {
	switch {
	case n <= 0:
		b.ClearMessages()
		return
	case n >= len(b.messages):
		return
	}
	ids := b.sortedIDs()
	for _, id := range ids[:len(ids)-n] {
		delete(b.messages, id)
	}
	b.recomputeBounds()
}

func (b *Buffer) recomputeBounds() {
	first := true
	for id := range b.messages {
		if first {
			b.first, b.last = id, id
			first = false
			continue
		}
		b.first = min(b.first, id)
		b.last = max(b.last, id)
	}
	if first {
		b.first, b.last = 0, 0
	}
}
