// Package ingest applies flat attribute-update maps onto typed entities.
//
// Field names come from `qt` struct tags and match case-insensitively.
// Values are coerced weakly (QByteArray to string, numeric widths, 0/1 to
// bool). Keys without a typed field are handed to the entity's Extra set so
// the schema stays open.
package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const tagName = "qt"

// Extender receives update keys that have no typed field.
type Extender interface {
	Extend(key string, value any)
}

// Extra is embedded (tagged `qt:"-"`) by entities that keep unknown
// attributes.
type Extra struct {
	Attrs map[string]any
}

func (e *Extra) Extend(key string, value any) {
	if e.Attrs == nil {
		e.Attrs = make(map[string]any)
	}
	e.Attrs[key] = value
}

// Attr returns an attribute that arrived without a typed field.
func (e *Extra) Attr(key string) (any, bool) {
	v, ok := e.Attrs[key]
	return v, ok
}

// ErrInvalidTarget is returned when Devour is not handed a struct pointer.
var ErrInvalidTarget = errors.New("ingest: target must be a non-nil struct pointer")

// Devour copies matching entries of updates onto target, a pointer to a
// struct, overwriting existing values. It may be called repeatedly. The
// update is decoded into a copy of target and committed only when every
// entry coerces, so a failed call leaves target untouched.
func Devour(target any, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T", ErrInvalidTarget, target)
	}
	scratch := reflect.New(rv.Elem().Type())
	scratch.Elem().Set(rv.Elem())

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          tagName,
		WeaklyTypedInput: true,
		// Lists and maps are rebuilt rather than written into the backing
		// storage shared with target.
		ZeroFields: true,
		Metadata:   &md,
		Result:     scratch.Interface(),
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if err := dec.Decode(updates); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	rv.Elem().Set(scratch.Elem())
	if ext, ok := target.(Extender); ok {
		for _, key := range md.Unused {
			ext.Extend(key, updates[key])
		}
	}
	return nil
}

// Has reports whether updates carries key, matched case-insensitively as
// Devour matches field tags.
func Has(updates map[string]any, key string) bool {
	for k := range updates {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// Snapshot renders the tagged fields of src, a struct or pointer to one, as
// an attribute map. Extra attributes are included.
func Snapshot(src any) (map[string]any, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: tagName,
		Result:  &out,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if err := dec.Decode(src); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if holder, ok := src.(interface{ extraAttrs() map[string]any }); ok {
		for k, v := range holder.extraAttrs() {
			if _, typed := out[k]; !typed {
				out[k] = v
			}
		}
	}
	return out, nil
}

func (e *Extra) extraAttrs() map[string]any { return e.Attrs }

// SetterKey maps a sync slot such as "setAwayNick" to its attribute name
// "awayNick".
func SetterKey(slot string) (string, bool) {
	if len(slot) < 4 || slot[:3] != "set" {
		return "", false
	}
	rest := slot[3:]
	if rest[0] < 'A' || rest[0] > 'Z' {
		return "", false
	}
	return string(rest[0]+('a'-'A')) + rest[1:], true
}

// ApplySetter devours the single parameter of a setter slot. It reports
// false when slot is not a setter or carries no parameter.
func ApplySetter(target any, slot string, params []any) (bool, error) {
	key, ok := SetterKey(slot)
	if !ok || len(params) == 0 {
		return false, nil
	}
	return true, Devour(target, map[string]any{key: params[0]})
}
