// Package bufferview models BufferViewConfig objects: named, ordered and
// filtered projections over buffer ids, independent of buffer content.
package bufferview

import (
	"fmt"
	"slices"

	"github.com/danmuck/libquassel/internal/ingest"
	logs "github.com/danmuck/libquassel/internal/logging"
)

// View is one buffer view. An id is never in both TemporarilyRemovedBuffers
// and RemovedBuffers.
type View struct {
	ingest.Extra `qt:"-"`

	ID                         int    `qt:"-"`
	SortAlphabetically         bool   `qt:"sortAlphabetically"`
	ShowSearch                 bool   `qt:"showSearch"`
	NetworkID                  int    `qt:"networkId"`
	MinimumActivity            int    `qt:"minimumActivity"`
	HideInactiveNetworks       bool   `qt:"hideInactiveNetworks"`
	HideInactiveBuffers        bool   `qt:"hideInactiveBuffers"`
	DisableDecoration          bool   `qt:"disableDecoration"`
	Name                       string `qt:"bufferViewName"`
	AllowedBufferTypes         int    `qt:"allowedBufferTypes"`
	AddNewBuffersAutomatically bool   `qt:"addNewBuffersAutomatically"`

	BufferList                []int `qt:"BufferList"`
	TemporarilyRemovedBuffers []int `qt:"TemporarilyRemovedBuffers"`
	RemovedBuffers            []int `qt:"RemovedBuffers"`
}

// New creates a view with id and an optional snapshot.
func New(id int, data map[string]any) *View {
	v := &View{ID: id}
	if err := v.Update(data); err != nil {
		logs.Warnf("bufferview.New id=%d err=%v", id, err)
	}
	return v
}

// Update applies an attribute map, then restores hidden-set exclusivity.
// When only TemporarilyRemovedBuffers is updated its ids leave
// RemovedBuffers; otherwise permanently removed ids leave the temporary set.
// A failed update changes nothing.
func (v *View) Update(data map[string]any) error {
	if err := ingest.Devour(v, data); err != nil {
		return err
	}
	tempOnly := ingest.Has(data, "TemporarilyRemovedBuffers") && !ingest.Has(data, "RemovedBuffers")
	v.exclusive(tempOnly)
	return nil
}

func (v *View) exclusive(tempWins bool) {
	if tempWins {
		v.RemovedBuffers = slices.DeleteFunc(v.RemovedBuffers, func(id int) bool {
			return slices.Contains(v.TemporarilyRemovedBuffers, id)
		})
		return
	}
	v.TemporarilyRemovedBuffers = slices.DeleteFunc(v.TemporarilyRemovedBuffers, func(id int) bool {
		return slices.Contains(v.RemovedBuffers, id)
	})
}

// ToMap renders the view back into its attribute form.
func (v *View) ToMap() (map[string]any, error) {
	return ingest.Snapshot(v)
}

func (v *View) IsTemporarilyRemoved(id int) bool {
	return slices.Contains(v.TemporarilyRemovedBuffers, id)
}

func (v *View) IsPermanentlyRemoved(id int) bool {
	return slices.Contains(v.RemovedBuffers, id)
}

func (v *View) IsHidden(id int) bool {
	return v.IsTemporarilyRemoved(id) || v.IsPermanentlyRemoved(id)
}

func (v *View) SetTemporarilyRemoved(id int) {
	v.Unhide(id)
	v.TemporarilyRemovedBuffers = append(v.TemporarilyRemovedBuffers, id)
}

func (v *View) SetPermanentlyRemoved(id int) {
	v.Unhide(id)
	v.RemovedBuffers = append(v.RemovedBuffers, id)
}

// Unhide removes id from whichever hidden set holds it.
func (v *View) Unhide(id int) {
	if i := slices.Index(v.TemporarilyRemovedBuffers, id); i >= 0 {
		v.TemporarilyRemovedBuffers = slices.Delete(v.TemporarilyRemovedBuffers, i, i+1)
		return
	}
	if i := slices.Index(v.RemovedBuffers, id); i >= 0 {
		v.RemovedBuffers = slices.Delete(v.RemovedBuffers, i, i+1)
	}
}

// MoveBuffer moves a listed id to pos, clamped to the list bounds. Unlisted
// ids are ignored.
func (v *View) MoveBuffer(id, pos int) {
	i := slices.Index(v.BufferList, id)
	if i < 0 {
		return
	}
	v.BufferList = slices.Delete(v.BufferList, i, i+1)
	v.insert(id, pos)
}

// AddBuffer inserts id at pos, or moves it there when already listed.
func (v *View) AddBuffer(id, pos int) {
	if slices.Contains(v.BufferList, id) {
		v.MoveBuffer(id, pos)
		return
	}
	v.insert(id, pos)
}

func (v *View) insert(id, pos int) {
	pos = max(0, min(pos, len(v.BufferList)))
	v.BufferList = slices.Insert(v.BufferList, pos, id)
}

// RemoveBuffer drops id from the ordered list only.
func (v *View) RemoveBuffer(id int) {
	v.BufferList = slices.DeleteFunc(v.BufferList, func(x int) bool { return x == id })
}

// Comparator orders a and b by their position in BufferList. When either id
// is unlisted they compare equal.
func (v *View) Comparator(a, b int) int {
	ia := slices.Index(v.BufferList, a)
	ib := slices.Index(v.BufferList, b)
	if ia < 0 || ib < 0 || ia == ib {
		return 0
	}
	if ia < ib {
		return -1
	}
	return 1
}

// Sort returns ids with listed ids first, in BufferList order, followed by
// unlisted ids in their input order.
func (v *View) Sort(ids []int) []int {
	pos := make(map[int]int, len(v.BufferList))
	for i, id := range v.BufferList {
		if _, seen := pos[id]; !seen {
			pos[id] = i
		}
	}
	out := slices.Clone(ids)
	slices.SortStableFunc(out, func(a, b int) int {
		pa, okA := pos[a]
		pb, okB := pos[b]
		switch {
		case okA && okB:
			return pa - pb
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Visible returns the listed ids that are not hidden.
func (v *View) Visible() []int {
	out := make([]int, 0, len(v.BufferList))
	for _, id := range v.BufferList {
		if !v.IsHidden(id) {
			out = append(out, id)
		}
	}
	return out
}

// InitData applies the snapshot delivered for the BufferViewConfig object.
func (v *View) InitData(params map[string]any) error {
	return v.Update(params)
}

// Sync applies one BufferViewConfig slot.
func (v *View) Sync(slot string, params []any) error {
	switch slot {
	case "addBuffer", "moveBuffer":
		args, err := intParams(slot, params, 2)
		if err != nil {
			return err
		}
		if slot == "addBuffer" {
			v.Unhide(args[0])
			v.AddBuffer(args[0], args[1])
		} else {
			v.MoveBuffer(args[0], args[1])
		}
	case "removeBuffer", "removeBufferPermanently":
		args, err := intParams(slot, params, 1)
		if err != nil {
			return err
		}
		v.RemoveBuffer(args[0])
		if slot == "removeBuffer" {
			v.SetTemporarilyRemoved(args[0])
		} else {
			v.SetPermanentlyRemoved(args[0])
		}
	case "setBufferViewName":
		if len(params) != 1 {
			return fmt.Errorf("bufferview: %s expects 1 parameter, got %d", slot, len(params))
		}
		return v.Update(map[string]any{"bufferViewName": params[0]})
	case "update":
		if len(params) == 1 {
			if m, ok := params[0].(map[string]any); ok {
				return v.Update(m)
			}
		}
		return fmt.Errorf("bufferview: update expects one map parameter")
	default:
		key, ok := ingest.SetterKey(slot)
		if !ok || len(params) == 0 {
			logs.Debugf("bufferview.Sync id=%d ignored slot=%s", v.ID, slot)
			return nil
		}
		return v.Update(map[string]any{key: params[0]})
	}
	return nil
}

func intParams(slot string, params []any, n int) ([]int, error) {
	if len(params) < n {
		return nil, fmt.Errorf("bufferview: %s expects %d parameters, got %d", slot, n, len(params))
	}
	var out struct {
		Args []int `qt:"args"`
	}
	if err := ingest.Devour(&out, map[string]any{"args": params[:n]}); err != nil {
		return nil, fmt.Errorf("bufferview: %s: %w", slot, err)
	}
	return out.Args, nil
}
