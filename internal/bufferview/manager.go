package bufferview

import (
	"fmt"
	"slices"

	"github.com/danmuck/libquassel/internal/ingest"
	logs "github.com/danmuck/libquassel/internal/logging"
)

// Manager tracks the views announced by the BufferViewManager object.
type Manager struct {
	views map[int]*View

	// OnAdd is called for every newly announced view, before its snapshot
	// arrives. OnRemove is called after a view is dropped.
	OnAdd    func(*View)
	OnRemove func(*View)
}

func NewManager() *Manager {
	return &Manager{views: make(map[int]*View)}
}

func (m *Manager) View(id int) (*View, bool) {
	v, ok := m.views[id]
	return v, ok
}

// Add registers an empty view for id; it reports false for known ids.
func (m *Manager) Add(id int) (*View, bool) {
	if v, ok := m.views[id]; ok {
		return v, false
	}
	v := New(id, nil)
	m.views[id] = v
	if m.OnAdd != nil {
		m.OnAdd(v)
	}
	return v, true
}

func (m *Manager) Remove(id int) bool {
	v, ok := m.views[id]
	if !ok {
		return false
	}
	delete(m.views, id)
	if m.OnRemove != nil {
		m.OnRemove(v)
	}
	return true
}

func (m *Manager) Len() int {
	return len(m.views)
}

// All returns the views ordered by id.
func (m *Manager) All() []*View {
	out := make([]*View, 0, len(m.views))
	for _, v := range m.views {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *View) int { return a.ID - b.ID })
	return out
}

// InitData registers every id in BufferViewIds.
func (m *Manager) InitData(params map[string]any) error {
	var snap struct {
		IDs []int `qt:"BufferViewIds"`
	}
	if err := ingest.Devour(&snap, params); err != nil {
		return fmt.Errorf("bufferview: manager init: %w", err)
	}
	for _, id := range snap.IDs {
		m.Add(id)
	}
	return nil
}

// Sync applies one BufferViewManager slot.
func (m *Manager) Sync(slot string, params []any) error {
	switch slot {
	case "addBufferViewConfig", "newBufferViewConfig", "deleteBufferViewConfig":
		args, err := intParams(slot, params, 1)
		if err != nil {
			return err
		}
		if slot == "deleteBufferViewConfig" {
			m.Remove(args[0])
		} else {
			m.Add(args[0])
		}
	default:
		logs.Debugf("bufferview.Manager ignored slot=%s", slot)
	}
	return nil
}
