package buffer

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	logs "github.com/danmuck/libquassel/internal/logging"
)

// LookupResult is the outcome of Collection.Lookup.
type LookupResult int

const (
	Found LookupResult = iota
	NotFound
	InvalidInput
)

func (r LookupResult) String() string {
	switch r {
	case Found:
		return "found"
	case NotFound:
		return "not-found"
	default:
		return "invalid-input"
	}
}

// Collection owns the buffers of one connection, keyed by id.
type Collection struct {
	buffers map[int]*Buffer
}

func NewCollection() *Collection {
	return &Collection{buffers: make(map[int]*Buffer)}
}

// AddBuffer inserts b. Re-adding an existing id is rejected and the stored
// buffer is kept.
func (c *Collection) AddBuffer(b *Buffer) bool {
	if b == nil {
		logs.Warnf("buffer.Collection.AddBuffer ignored nil buffer")
		return false
	}
	if _, exists := c.buffers[b.ID]; exists {
		logs.Warnf("buffer.Collection.AddBuffer duplicate id=%d name=%q", b.ID, b.Name)
		return false
	}
	c.buffers[b.ID] = b
	return true
}

func (c *Collection) Buffer(id int) (*Buffer, bool) {
	b, ok := c.buffers[id]
	return b, ok
}

// BufferByName finds a buffer by case-insensitive exact name. With several
// matches the lowest id wins.
func (c *Collection) BufferByName(name string) (*Buffer, bool) {
	var hit *Buffer
	for id, b := range c.buffers {
		if strings.EqualFold(b.Name, name) && (hit == nil || id < hit.ID) {
			hit = b
		}
	}
	return hit, hit != nil
}

// BufferByNetworkName scopes a name lookup to one network.
func (c *Collection) BufferByNetworkName(network int, name string) (*Buffer, bool) {
	var hit *Buffer
	for id, b := range c.buffers {
		if b.Network == network && strings.EqualFold(b.Name, name) && (hit == nil || id < hit.ID) {
			hit = b
		}
	}
	return hit, hit != nil
}

// Lookup resolves key as an id (any integer kind) or a name (string or byte
// slice).
func (c *Collection) Lookup(key any) (*Buffer, LookupResult) {
	switch k := key.(type) {
	case string:
		if k == "" {
			return nil, InvalidInput
		}
		if b, ok := c.BufferByName(k); ok {
			return b, Found
		}
		return nil, NotFound
	case []byte:
		return c.Lookup(string(k))
	case nil:
		return nil, InvalidInput
	}
	rv := reflect.ValueOf(key)
	var id int
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		id = int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		id = int(rv.Uint())
	default:
		return nil, InvalidInput
	}
	if b, ok := c.buffers[id]; ok {
		return b, Found
	}
	return nil, NotFound
}

func (c *Collection) HasBuffer(key any) bool {
	_, res := c.Lookup(key)
	return res == Found
}

// RemoveBuffer deletes the buffer addressed by key and reports whether one
// was removed.
func (c *Collection) RemoveBuffer(key any) bool {
	b, res := c.Lookup(key)
	if res != Found {
		if res == InvalidInput {
			logs.Warnf("buffer.Collection.RemoveBuffer invalid key=%v", key)
		}
		return false
	}
	delete(c.buffers, b.ID)
	return true
}

// MoveBuffer re-keys b under id. It fails when b is not stored here or id is
// held by another buffer; the collection is unchanged on failure.
func (c *Collection) MoveBuffer(b *Buffer, id int) error {
	if b == nil {
		return fmt.Errorf("buffer: move of nil buffer")
	}
	if cur, ok := c.buffers[b.ID]; !ok || cur != b {
		return fmt.Errorf("buffer: move of unknown buffer id=%d", b.ID)
	}
	if b.ID == id {
		return nil
	}
	if other, taken := c.buffers[id]; taken {
		return fmt.Errorf("buffer: move id=%d to id=%d held by %q", b.ID, id, other.Name)
	}
	delete(c.buffers, b.ID)
	b.ID = id
	c.buffers[id] = b
	return nil
}

func (c *Collection) Len() int {
	return len(c.buffers)
}

// All returns the buffers ordered by id.
func (c *Collection) All() []*Buffer {
	out := make([]*Buffer, 0, len(c.buffers))
	for _, b := range c.buffers {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *Buffer) int { return a.ID - b.ID })
	return out
}
