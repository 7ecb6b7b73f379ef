package protocol

import (
	"fmt"
	"net"
)

// Constructor builds a variant over an already-negotiated stream.
type Constructor func(stream net.Conn, opts Options) (Protocol, error)

// Variant describes one registered wire variant.
type Variant struct {
	ID       uint8
	Features uint16
	Name     string
	New      Constructor
}

// variants is ordered by client preference.
var variants = []Variant{
	{
		ID:       DatastreamID,
		Features: DatastreamFeatures,
		Name:     "datastream",
		New: func(stream net.Conn, opts Options) (Protocol, error) {
			p, err := NewDatastream(stream, opts)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	},
	{
		ID:       LegacyID,
		Features: LegacyFeatures,
		Name:     "legacy",
		New: func(stream net.Conn, opts Options) (Protocol, error) {
			p, err := NewLegacy(stream, opts)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	},
}

// Variants returns the registered variants in preference order.
func Variants() []Variant {
	out := make([]Variant, len(variants))
	copy(out, variants)
	return out
}

func ByID(id uint8) (Variant, bool) {
	for _, v := range variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

func ByName(name string) (Variant, bool) {
	for _, v := range variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Preferred filters the registered variants down to the named ones, keeping
// the order of names. An empty list selects every variant.
func Preferred(names []string) ([]Variant, error) {
	if len(names) == 0 {
		return Variants(), nil
	}
	out := make([]Variant, 0, len(names))
	for _, name := range names {
		v, ok := ByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
		}
		out = append(out, v)
	}
	return out, nil
}

// New instantiates the variant the core selected.
func New(id uint8, stream net.Conn, opts Options) (Protocol, error) {
	v, ok := ByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownProtocol, id)
	}
	return v.New(stream, opts)
}
