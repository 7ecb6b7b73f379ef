package buffer

import (
	"testing"
	"time"

	"github.com/danmuck/libquassel/internal/protocol/qtds"
	"github.com/danmuck/libquassel/internal/testutil/testlog"
	"github.com/danmuck/libquassel/internal/user"
)

func msg(id any) map[string]any {
	return map[string]any{"id": id, "content": "hello", "sender": "nick!u@h", "type": int(MessagePlain)}
}

func ids(b *Buffer) []int {
	var out []int
	for _, m := range b.Messages() {
		out = append(out, m.ID)
	}
	return out
}

func assertBounds(t *testing.T, b *Buffer, first, last int) {
	t.Helper()
	gotFirst, ok := b.FirstID()
	if !ok {
		t.Fatalf("expected non-empty buffer")
	}
	gotLast, _ := b.LastID()
	if gotFirst != first || gotLast != last {
		t.Fatalf("expected bounds %d..%d, got %d..%d", first, last, gotFirst, gotLast)
	}
}

func TestAddMessageRejectsDuplicates(t *testing.T) {
	testlog.Start(t)
	b := New(1, nil)
	if b.AddMessage(msg(4)) == nil {
		t.Fatalf("expected first insert to succeed")
	}
	if b.AddMessage(msg("4")) != nil {
		t.Fatalf("expected duplicate id to be rejected")
	}
	if b.AddMessage(msg(qtds.MsgID(2))) == nil {
		t.Fatalf("expected wire id to be accepted")
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", b.Len())
	}
	assertBounds(t, b, 2, 4)
	if !b.IsLast(4) || b.IsLast("2") || b.IsLast("x") {
		t.Fatalf("unexpected IsLast results")
	}
}

func TestAddMessageRejectsMalformedID(t *testing.T) {
	testlog.Start(t)
	b := New(1, nil)
	for _, raw := range []any{nil, "abc", 1.5, []string{"1"}} {
		if b.AddMessage(msg(raw)) != nil {
			t.Fatalf("expected id %v to be rejected", raw)
		}
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d", b.Len())
	}
	if _, ok := b.FirstID(); ok {
		t.Fatalf("expected no bounds on empty buffer")
	}
}

func TestTrimKeepsNewest(t *testing.T) {
	testlog.Start(t)
	b := New(1, nil)
	for _, id := range []int{5, 3, 9, 1} {
		b.AddMessage(msg(id))
	}
	b.TrimMessages(2)
	got := ids(b)
	if len(got) != 2 || got[0] != 5 || got[1] != 9 {
		t.Fatalf("expected [5 9], got %v", got)
	}
	assertBounds(t, b, 5, 9)
}

func TestTrimEdges(t *testing.T) {
	testlog.Start(t)
	b := New(1, nil)
	for _, id := range []int{10, 2, 100} {
		b.AddMessage(msg(id))
	}
	b.TrimMessages(3)
	if b.Len() != 3 {
		t.Fatalf("expected n >= size to be a no-op, got %d", b.Len())
	}
	b.TrimMessages(1)
	if got := ids(b); len(got) != 1 || got[0] != 100 {
		t.Fatalf("expected numeric ordering to keep 100, got %v", got)
	}
	b.TrimMessages(0)
	if b.Len() != 0 || b.FirstMessage() != nil || b.LastMessage() != nil {
		t.Fatalf("expected n <= 0 to clear")
	}
}

func TestDeleteMessage(t *testing.T) {
	testlog.Start(t)
	b := New(1, nil)
	b.AddMessage(msg(7))
	b.DeleteMessage(12345)
	if b.Len() != 0 {
		t.Fatalf("expected single-message buffer to be cleared regardless of id")
	}
	for _, id := range []int{1, 2, 3} {
		b.AddMessage(msg(id))
	}
	b.DeleteMessage(3)
	assertBounds(t, b, 1, 2)
	b.DeleteMessage(1)
	assertBounds(t, b, 2, 2)
	if b.LastMessage().ID != 2 {
		t.Fatalf("unexpected last message %+v", b.LastMessage())
	}
}

func TestAddWireMessage(t *testing.T) {
	testlog.Start(t)
	b := New(3, nil)
	at := time.Unix(1700000000, 0).UTC()
	m := b.AddWireMessage(qtds.Message{
		ID:        42,
		Timestamp: at,
		Type:      uint32(MessageAction),
		Flags:     uint8(FlagSelf | FlagHighlight),
		Buffer:    qtds.BufferInfo{ID: 3, Network: 1, Type: int16(TypeChannel), Name: []byte("#go")},
		Sender:    []byte("ann!a@h"),
		Content:   []byte("waves"),
	})
	if m == nil {
		t.Fatalf("expected message to be stored")
	}
	if !m.Is(MessageAction) || !m.IsSelf() || !m.IsHighlight() || m.IsBacklog() {
		t.Fatalf("unexpected type/flags %v/%v", m.Type, m.Flags)
	}
	if m.SenderNick() != "ann" || m.Content != "waves" || !m.Timestamp.Equal(at) {
		t.Fatalf("unexpected message %+v", m)
	}
	if m.Buffer.Name != "#go" || m.Buffer.Type != TypeChannel {
		t.Fatalf("unexpected buffer info %+v", m.Buffer)
	}
}

func TestRosterModes(t *testing.T) {
	testlog.Start(t)
	b := New(1, map[string]any{"name": "#go", "type": int(TypeChannel)})
	if !b.IsChannel() || b.IsStatusBuffer() {
		t.Fatalf("expected channel buffer")
	}
	u, _ := user.New("op!o@h", nil)
	b.AddUser(u, "o")
	b.AddUser(nil, "v")
	b.AddUserMode("op", "v")
	b.AddUserMode("op", "v")
	if m, _ := b.Member("op"); m.Modes != "ov" {
		t.Fatalf("expected modes ov, got %q", m.Modes)
	}
	if !b.IsOp("op") || !b.IsVoiced("op") || b.IsHalfOp("op") || b.IsOwner("op") || b.IsAdmin("op") {
		t.Fatalf("unexpected mode predicates")
	}
	b.RemoveUserMode("op", "q")
	b.RemoveUserMode("op", "o")
	if b.IsOp("op") || !b.IsVoiced("op") {
		t.Fatalf("expected only op removed")
	}
	if b.HasUser("") || !b.HasUser("op") {
		t.Fatalf("unexpected HasUser results")
	}

	renamed, err := u.Renamed("op2")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	b.UpdateUserMaps("op", renamed)
	if b.HasUser("op") || !b.HasUser("op2") {
		t.Fatalf("expected roster to follow rename, got %v", b.Nicks())
	}
	if m, _ := b.Member("op2"); m.User != renamed || m.Modes != "v" {
		t.Fatalf("expected member to point at the renamed user with modes kept, got %+v", m)
	}
	b.RemoveUser("op2")
	if len(b.Nicks()) != 0 {
		t.Fatalf("expected empty roster, got %v", b.Nicks())
	}
}

func TestBufferInfoProjection(t *testing.T) {
	testlog.Start(t)
	b := FromInfo(InfoFromWire(qtds.BufferInfo{ID: 8, Network: 2, Type: int16(TypeStatus), Name: []byte("")}))
	if !b.IsStatusBuffer() {
		t.Fatalf("expected status buffer")
	}
	info := b.BufferInfo()
	if info.ID != 8 || info.Network != 2 || info.Group != 0 {
		t.Fatalf("unexpected info %+v", info)
	}
	wire := info.Wire()
	if wire.ID != 8 || wire.Type != int16(TypeStatus) {
		t.Fatalf("unexpected wire info %+v", wire)
	}
	b.SetName("&local")
	if !b.IsChannel() {
		t.Fatalf("expected & prefix to be a channel")
	}
}
