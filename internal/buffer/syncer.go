package buffer

import (
	"fmt"

	logs "github.com/danmuck/libquassel/internal/logging"
)

// Syncer applies the BufferSyncer object onto a Collection: read markers,
// activity and buffer removal, renaming and merging.
type Syncer struct {
	c          *Collection
	LastSeen   map[int]int
	Markers    map[int]int
	Activities map[int]int
}

func NewSyncer(c *Collection) *Syncer {
	return &Syncer{
		c:          c,
		LastSeen:   make(map[int]int),
		Markers:    make(map[int]int),
		Activities: make(map[int]int),
	}
}

// InitData loads the flat [bufferId, value, ...] lists of the snapshot.
func (s *Syncer) InitData(params map[string]any) error {
	for key, dst := range map[string]map[int]int{
		"LastSeenMsg": s.LastSeen,
		"MarkerLines": s.Markers,
		"Activities":  s.Activities,
	} {
		raw, ok := params[key]
		if !ok {
			continue
		}
		if err := loadPairs(dst, raw); err != nil {
			return fmt.Errorf("buffer: syncer %s: %w", key, err)
		}
	}
	return nil
}

func loadPairs(dst map[int]int, raw any) error {
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("expected list, got %T", raw)
	}
	if len(list)%2 != 0 {
		return fmt.Errorf("odd pair list length %d", len(list))
	}
	for i := 0; i < len(list); i += 2 {
		k, err := parseID(list[i])
		if err != nil {
			return err
		}
		v, err := parseID(list[i+1])
		if err != nil {
			return err
		}
		dst[k] = v
	}
	return nil
}

func (s *Syncer) ints(slot string, params []any, n int) ([]int, error) {
	if len(params) < n {
		return nil, fmt.Errorf("buffer: %s expects %d parameters, got %d", slot, n, len(params))
	}
	out := make([]int, n)
	for i := range out {
		v, err := parseID(params[i])
		if err != nil {
			return nil, fmt.Errorf("buffer: %s: %w", slot, err)
		}
		out[i] = v
	}
	return out, nil
}

// Sync applies one BufferSyncer slot.
func (s *Syncer) Sync(slot string, params []any) error {
	switch slot {
	case "setLastSeenMsg", "setMarkerLine", "setBufferActivity":
		args, err := s.ints(slot, params, 2)
		if err != nil {
			return err
		}
		switch slot {
		case "setLastSeenMsg":
			s.LastSeen[args[0]] = args[1]
		case "setMarkerLine":
			s.Markers[args[0]] = args[1]
		default:
			s.Activities[args[0]] = args[1]
		}
	case "markBufferAsRead":
		args, err := s.ints(slot, params, 1)
		if err != nil {
			return err
		}
		delete(s.Activities, args[0])
	case "removeBuffer":
		args, err := s.ints(slot, params, 1)
		if err != nil {
			return err
		}
		s.forget(args[0])
		s.c.RemoveBuffer(args[0])
	case "renameBuffer":
		args, err := s.ints(slot, params, 1)
		if err != nil {
			return err
		}
		if len(params) < 2 {
			return fmt.Errorf("buffer: renameBuffer expects 2 parameters, got %d", len(params))
		}
		b, ok := s.c.Buffer(args[0])
		if !ok {
			logs.Debugf("buffer.Syncer renameBuffer unknown id=%d", args[0])
			return nil
		}
		b.SetName(stringParam(params[1]))
	case "mergeBuffersPermanently":
		args, err := s.ints(slot, params, 2)
		if err != nil {
			return err
		}
		s.merge(args[0], args[1])
	default:
		logs.Debugf("buffer.Syncer ignored slot=%s", slot)
	}
	return nil
}

// merge folds the history of source into target and drops source.
func (s *Syncer) merge(target, source int) {
	dst, ok := s.c.Buffer(target)
	src, srcOK := s.c.Buffer(source)
	if !ok || !srcOK {
		logs.Warnf("buffer.Syncer merge unknown buffers target=%d source=%d", target, source)
		s.c.RemoveBuffer(source)
		return
	}
	for _, m := range src.Messages() {
		if _, dup := dst.messages[m.ID]; dup {
			continue
		}
		if len(dst.messages) == 0 {
			dst.first, dst.last = m.ID, m.ID
		} else {
			dst.first = min(dst.first, m.ID)
			dst.last = max(dst.last, m.ID)
		}
		dst.messages[m.ID] = m
	}
	s.forget(source)
	s.c.RemoveBuffer(source)
}

func (s *Syncer) forget(id int) {
	delete(s.LastSeen, id)
	delete(s.Markers, id)
	delete(s.Activities, id)
}

func stringParam(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
