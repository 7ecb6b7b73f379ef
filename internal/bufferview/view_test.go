package bufferview

import (
	"slices"
	"testing"

	"github.com/danmuck/libquassel/internal/protocol/qtds"
	"github.com/danmuck/libquassel/internal/testutil/testlog"
)

func TestHiddenSetsAreExclusive(t *testing.T) {
	testlog.Start(t)
	v := New(1, nil)
	v.SetTemporarilyRemoved(7)
	v.SetPermanentlyRemoved(7)
	if v.IsTemporarilyRemoved(7) || !v.IsPermanentlyRemoved(7) {
		t.Fatalf("expected 7 only in RemovedBuffers, temp=%v perm=%v",
			v.TemporarilyRemovedBuffers, v.RemovedBuffers)
	}
	v.SetTemporarilyRemoved(7)
	if !v.IsTemporarilyRemoved(7) || v.IsPermanentlyRemoved(7) {
		t.Fatalf("expected 7 only in TemporarilyRemovedBuffers")
	}
	for _, id := range []int{7, 8} {
		if v.IsHidden(id) != (v.IsTemporarilyRemoved(id) || v.IsPermanentlyRemoved(id)) {
			t.Fatalf("IsHidden mismatch for %d", id)
		}
	}
	v.Unhide(7)
	if v.IsHidden(7) {
		t.Fatalf("expected 7 to be visible")
	}
}

func TestUpdateNormalizesHiddenSets(t *testing.T) {
	testlog.Start(t)
	v := New(2, map[string]any{
		"bufferViewName":            []byte("All Chats"),
		"sortAlphabetically":        true,
		"BufferList":                []any{qtds.BufferID(3), qtds.BufferID(1)},
		"TemporarilyRemovedBuffers": []any{qtds.BufferID(5), qtds.BufferID(6)},
		"RemovedBuffers":            []any{qtds.BufferID(6)},
	})
	if v.Name != "All Chats" || !v.SortAlphabetically {
		t.Fatalf("unexpected view %+v", v)
	}
	if !slices.Equal(v.TemporarilyRemovedBuffers, []int{5}) || !slices.Equal(v.RemovedBuffers, []int{6}) {
		t.Fatalf("unexpected hidden sets temp=%v perm=%v", v.TemporarilyRemovedBuffers, v.RemovedBuffers)
	}
	if !slices.Equal(v.BufferList, []int{3, 1}) {
		t.Fatalf("unexpected list %v", v.BufferList)
	}
}

func TestFailedUpdateChangesNothing(t *testing.T) {
	testlog.Start(t)
	v := New(1, map[string]any{"bufferViewName": "Chats", "BufferList": []any{1, 2}})
	v.SetTemporarilyRemoved(7)

	err := v.Update(map[string]any{
		"bufferViewName":  "Broken",
		"BufferList":      []any{3},
		"RemovedBuffers":  []any{7},
		"minimumActivity": []any{"x"},
	})
	if err == nil {
		t.Fatalf("expected coercion error")
	}
	if v.Name != "Chats" || !slices.Equal(v.BufferList, []int{1, 2}) {
		t.Fatalf("expected view untouched, got name=%q list=%v", v.Name, v.BufferList)
	}
	if !slices.Equal(v.TemporarilyRemovedBuffers, []int{7}) || len(v.RemovedBuffers) != 0 {
		t.Fatalf("unexpected hidden sets temp=%v perm=%v", v.TemporarilyRemovedBuffers, v.RemovedBuffers)
	}
}

func TestHiddenSetSettersStayExclusive(t *testing.T) {
	testlog.Start(t)
	v := New(1, nil)
	v.SetTemporarilyRemoved(7)
	if err := v.Sync("setRemovedBuffers", []any{[]any{qtds.BufferID(7)}}); err != nil {
		t.Fatalf("setRemovedBuffers: %v", err)
	}
	if v.IsTemporarilyRemoved(7) || !v.IsPermanentlyRemoved(7) {
		t.Fatalf("expected 7 only permanently removed, temp=%v perm=%v", v.TemporarilyRemovedBuffers, v.RemovedBuffers)
	}

	if err := v.Sync("setTemporarilyRemovedBuffers", []any{[]any{7, 8}}); err != nil {
		t.Fatalf("setTemporarilyRemovedBuffers: %v", err)
	}
	if !slices.Equal(v.TemporarilyRemovedBuffers, []int{7, 8}) || len(v.RemovedBuffers) != 0 {
		t.Fatalf("expected 7 and 8 only temporarily removed, temp=%v perm=%v", v.TemporarilyRemovedBuffers, v.RemovedBuffers)
	}
	for _, id := range []int{7, 8} {
		if v.IsTemporarilyRemoved(id) && v.IsPermanentlyRemoved(id) {
			t.Fatalf("id %d in both hidden sets", id)
		}
	}
}

func TestMoveAndAddBuffer(t *testing.T) {
	testlog.Start(t)
	v := New(1, map[string]any{"BufferList": []int{1, 2, 3}})
	v.MoveBuffer(3, 0)
	if !slices.Equal(v.BufferList, []int{3, 1, 2}) {
		t.Fatalf("unexpected list after move %v", v.BufferList)
	}
	v.MoveBuffer(3, 0)
	if !slices.Equal(v.BufferList, []int{3, 1, 2}) {
		t.Fatalf("expected repeated move to be idempotent, got %v", v.BufferList)
	}
	v.MoveBuffer(9, 0)
	v.AddBuffer(4, 99)
	v.AddBuffer(1, -5)
	if !slices.Equal(v.BufferList, []int{1, 3, 2, 4}) {
		t.Fatalf("unexpected list after add %v", v.BufferList)
	}
	v.AddBuffer(4, 3)
	if !slices.Equal(v.BufferList, []int{1, 3, 2, 4}) {
		t.Fatalf("expected add of listed id at same position to be a no-op, got %v", v.BufferList)
	}
	v.RemoveBuffer(3)
	if !slices.Equal(v.BufferList, []int{1, 2, 4}) {
		t.Fatalf("unexpected list after remove %v", v.BufferList)
	}
}

func TestComparatorFollowsList(t *testing.T) {
	testlog.Start(t)
	v := New(1, map[string]any{"BufferList": []int{10, 30, 20}})
	for i, a := range v.BufferList {
		for j, b := range v.BufferList {
			got := v.Comparator(a, b)
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if got != want {
				t.Fatalf("Comparator(%d,%d)=%d want %d", a, b, got, want)
			}
		}
	}
	if v.Comparator(10, 99) != 0 || v.Comparator(99, 10) != 0 {
		t.Fatalf("expected unlisted ids to compare equal")
	}
	if got := v.Sort([]int{99, 20, 5, 10}); !slices.Equal(got, []int{10, 20, 99, 5}) {
		t.Fatalf("unexpected sort %v", got)
	}
}

func TestViewSyncSlots(t *testing.T) {
	testlog.Start(t)
	v := New(1, map[string]any{"BufferList": []int{1, 2}})
	steps := []struct {
		slot   string
		params []any
	}{
		{"removeBuffer", []any{qtds.BufferID(2)}},
		{"removeBufferPermanently", []any{qtds.BufferID(1)}},
		{"addBuffer", []any{qtds.BufferID(2), int32(0)}},
		{"setBufferViewName", []any{"Work"}},
		{"setMinimumActivity", []any{int32(2)}},
	}
	for _, step := range steps {
		if err := v.Sync(step.slot, step.params); err != nil {
			t.Fatalf("%s: %v", step.slot, err)
		}
	}
	if !slices.Equal(v.BufferList, []int{2}) || v.IsHidden(2) || !v.IsPermanentlyRemoved(1) {
		t.Fatalf("unexpected view state list=%v temp=%v perm=%v",
			v.BufferList, v.TemporarilyRemovedBuffers, v.RemovedBuffers)
	}
	if v.Name != "Work" || v.MinimumActivity != 2 {
		t.Fatalf("unexpected attributes %+v", v)
	}
	if err := v.Sync("moveBuffer", []any{qtds.BufferID(2)}); err == nil {
		t.Fatalf("expected missing position to fail")
	}
	if got := v.Visible(); !slices.Equal(got, []int{2}) {
		t.Fatalf("unexpected visible ids %v", got)
	}
}

func TestToMap(t *testing.T) {
	testlog.Start(t)
	v := New(3, map[string]any{"bufferViewName": "x", "BufferList": []int{4}})
	m, err := v.ToMap()
	if err != nil {
		t.Fatalf("to map: %v", err)
	}
	if m["bufferViewName"] != "x" || !slices.Equal(m["BufferList"].([]int), []int{4}) {
		t.Fatalf("unexpected map %v", m)
	}
}

func TestManager(t *testing.T) {
	testlog.Start(t)
	m := NewManager()
	var added, removed []int
	m.OnAdd = func(v *View) { added = append(added, v.ID) }
	m.OnRemove = func(v *View) { removed = append(removed, v.ID) }

	if err := m.InitData(map[string]any{"BufferViewIds": []any{int32(2), int32(1)}}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := m.Sync("addBufferViewConfig", []any{int32(2)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Sync("addBufferViewConfig", []any{int32(5)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Sync("deleteBufferViewConfig", []any{int32(1)}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !slices.Equal(added, []int{2, 1, 5}) || !slices.Equal(removed, []int{1}) {
		t.Fatalf("unexpected hooks added=%v removed=%v", added, removed)
	}
	all := m.All()
	if len(all) != 2 || all[0].ID != 2 || all[1].ID != 5 {
		t.Fatalf("unexpected views %v", all)
	}
}
