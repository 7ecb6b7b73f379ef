package protocol

import (
	"sort"

	"github.com/danmuck/libquassel/internal/protocol/qtds"
)

// IsNumeric reports whether v is a plain integer or floating point value.
func IsNumeric(v any) bool {
	_, ok := AsInt(v)
	if ok {
		return true
	}
	_, ok = v.(float64)
	return ok
}

// AsInt widens any decoded integer, including the id user types, to int64.
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case RequestType:
		return int64(x), true
	case qtds.BufferID:
		return int64(x), true
	case qtds.NetworkID:
		return int64(x), true
	case qtds.IdentityID:
		return int64(x), true
	case qtds.MsgID:
		return int64(x), true
	default:
		return 0, false
	}
}

// AsString accepts QString and QByteArray forms of a name.
func AsString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}

// mapToList flattens a field map into alternating key/value entries, keys
// as byte arrays, in sorted key order.
func mapToList(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, []byte(k), m[k])
	}
	return out
}

// listToMap folds alternating key/value entries back into a field map. A
// trailing key without a value maps to nil; entries whose key is not a name
// are skipped.
func listToMap(list []any) map[string]any {
	out := make(map[string]any, len(list)/2)
	for i := 0; i < len(list); i += 2 {
		k, ok := AsString(list[i])
		if !ok {
			continue
		}
		var v any
		if i+1 < len(list) {
			v = list[i+1]
		}
		out[k] = v
	}
	return out
}

// paramsFromList converts trailing init-data parameters into a field map.
func paramsFromList(rest []any) map[string]any {
	if len(rest) == 1 {
		if m, ok := rest[0].(map[string]any); ok {
			return m
		}
	}
	if len(rest) > 0 && IsNumeric(rest[0]) {
		return nil
	}
	return listToMap(rest)
}

// classifyList turns a numeric-led frame into an initdata or struct event.
func classifyList(list []any, legacy bool) Event {
	if len(list) > 1 {
		if n, _ := AsInt(list[0]); RequestType(n) == InitData {
			if _, isBytes := list[1].([]byte); isBytes {
				ev := Event{Kind: EventInitData}
				ev.ClassName, _ = AsString(list[1])
				if len(list) > 2 {
					ev.ObjectName, _ = AsString(list[2])
				}
				if legacy {
					if len(list) > 3 {
						ev.Raw = list[3]
						ev.Params, _ = list[3].(map[string]any)
					}
				} else {
					rest := list[min(3, len(list)):]
					ev.Raw = rest
					ev.Params = paramsFromList(rest)
				}
				return ev
			}
		}
	}
	return Event{Kind: EventStruct, Frame: list}
}
