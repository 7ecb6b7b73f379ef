package buffer

import (
	"testing"

	"github.com/danmuck/libquassel/internal/protocol/qtds"
	"github.com/danmuck/libquassel/internal/testutil/testlog"
)

func TestAddBufferRejectsDuplicateID(t *testing.T) {
	testlog.Start(t)
	c := NewCollection()
	orig := New(1, map[string]any{"name": "#a"})
	if !c.AddBuffer(orig) {
		t.Fatalf("expected first add to succeed")
	}
	if c.AddBuffer(New(1, map[string]any{"name": "#b"})) {
		t.Fatalf("expected duplicate id to be rejected")
	}
	if c.AddBuffer(nil) {
		t.Fatalf("expected nil buffer to be rejected")
	}
	if got, _ := c.Buffer(1); got != orig || c.Len() != 1 {
		t.Fatalf("expected original buffer to be kept")
	}
}

func TestLookup(t *testing.T) {
	testlog.Start(t)
	c := NewCollection()
	c.AddBuffer(New(2, map[string]any{"name": "#Go-Nuts"}))
	c.AddBuffer(New(5, map[string]any{"name": "alice"}))

	cases := []struct {
		key  any
		id   int
		want LookupResult
	}{
		{2, 2, Found},
		{qtds.BufferID(5), 5, Found},
		{"#go-nuts", 2, Found},
		{[]byte("ALICE"), 5, Found},
		{"#missing", 0, NotFound},
		{9, 0, NotFound},
		{"", 0, InvalidInput},
		{nil, 0, InvalidInput},
		{3.5, 0, InvalidInput},
	}
	for _, tc := range cases {
		b, res := c.Lookup(tc.key)
		if res != tc.want {
			t.Fatalf("Lookup(%v) got %s want %s", tc.key, res, tc.want)
		}
		if res == Found && b.ID != tc.id {
			t.Fatalf("Lookup(%v) got id %d want %d", tc.key, b.ID, tc.id)
		}
	}
	if !c.HasBuffer("alice") || c.HasBuffer("bob") {
		t.Fatalf("unexpected HasBuffer results")
	}
}

func TestRemoveAndMoveBuffer(t *testing.T) {
	testlog.Start(t)
	c := NewCollection()
	a := New(1, map[string]any{"name": "#a"})
	b := New(2, map[string]any{"name": "#b"})
	c.AddBuffer(a)
	c.AddBuffer(b)

	if err := c.MoveBuffer(a, 2); err == nil {
		t.Fatalf("expected move onto an occupied id to fail")
	}
	if err := c.MoveBuffer(a, 10); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, ok := c.Buffer(1); ok {
		t.Fatalf("expected old id to be free")
	}
	if got, _ := c.Buffer(10); got != a || a.ID != 10 {
		t.Fatalf("expected buffer re-keyed to 10")
	}
	if err := c.MoveBuffer(New(99, nil), 100); err == nil {
		t.Fatalf("expected move of a foreign buffer to fail")
	}

	if !c.RemoveBuffer("#B") || c.RemoveBuffer("#b") {
		t.Fatalf("unexpected remove results")
	}
	all := c.All()
	if len(all) != 1 || all[0] != a {
		t.Fatalf("unexpected remaining buffers %v", all)
	}
}

func TestAllSortedByID(t *testing.T) {
	testlog.Start(t)
	c := NewCollection()
	for _, id := range []int{9, 1, 4} {
		c.AddBuffer(New(id, nil))
	}
	all := c.All()
	if all[0].ID != 1 || all[1].ID != 4 || all[2].ID != 9 {
		t.Fatalf("expected id order, got %d %d %d", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestSyncer(t *testing.T) {
	testlog.Start(t)
	c := NewCollection()
	target := New(1, map[string]any{"name": "#a"})
	source := New(2, map[string]any{"name": "#a-old"})
	c.AddBuffer(target)
	c.AddBuffer(source)
	target.AddMessage(msg(10))
	source.AddMessage(msg(4))
	source.AddMessage(msg(10))

	s := NewSyncer(c)
	err := s.InitData(map[string]any{
		"LastSeenMsg": []any{qtds.BufferID(1), qtds.MsgID(10), qtds.BufferID(2), qtds.MsgID(4)},
		"MarkerLines": []any{qtds.BufferID(1), qtds.MsgID(9)},
	})
	if err != nil {
		t.Fatalf("init data: %v", err)
	}
	if s.LastSeen[1] != 10 || s.Markers[1] != 9 {
		t.Fatalf("unexpected markers %v %v", s.LastSeen, s.Markers)
	}
	if err := s.InitData(map[string]any{"Activities": []any{qtds.BufferID(1)}}); err == nil {
		t.Fatalf("expected odd pair list to fail")
	}

	if err := s.Sync("renameBuffer", []any{qtds.BufferID(1), "#renamed"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if target.Name != "#renamed" {
		t.Fatalf("expected rename, got %q", target.Name)
	}
	if err := s.Sync("mergeBuffersPermanently", []any{qtds.BufferID(1), qtds.BufferID(2)}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if c.HasBuffer(2) || target.Len() != 2 {
		t.Fatalf("expected source merged into target, len=%d", target.Len())
	}
	assertBounds(t, target, 4, 10)
	if _, ok := s.LastSeen[2]; ok {
		t.Fatalf("expected merged buffer markers dropped")
	}

	if err := s.Sync("setLastSeenMsg", []any{qtds.BufferID(1), qtds.MsgID(11)}); err != nil || s.LastSeen[1] != 11 {
		t.Fatalf("unexpected setLastSeenMsg err=%v last=%d", err, s.LastSeen[1])
	}
	if err := s.Sync("removeBuffer", []any{qtds.BufferID(1)}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected collection to be empty")
	}
	if err := s.Sync("removeBuffer", nil); err == nil {
		t.Fatalf("expected missing parameter to fail")
	}
}
