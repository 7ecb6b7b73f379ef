package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	ProbeMagic   uint32 = 0x42b33f00
	probeListEnd uint32 = 0x80000000
	maxOffers           = 16
)

// ConnFeature is a bit in the connection feature byte of the probe.
type ConnFeature uint8

const (
	FeatureTLS         ConnFeature = 0x01
	FeatureCompression ConnFeature = 0x02
)

func (f ConnFeature) Has(flag ConnFeature) bool { return f&flag != 0 }

var (
	ErrBadProbeMagic = errors.New("session: probe magic mismatch")
	ErrNoOffers      = errors.New("session: probe carries no protocol offers")
	ErrTooManyOffers = errors.New("session: too many protocol offers")
)

// Offer is one protocol the client is willing to speak.
type Offer struct {
	ID       uint8
	Features uint16
}

// ProbeReply is the core's protocol selection.
type ProbeReply struct {
	Protocol         uint8
	ProtocolFeatures uint16
	ConnFeatures     ConnFeature
}

func encodeReply(r ProbeReply) uint32 {
	return uint32(r.Protocol) | uint32(r.ProtocolFeatures)<<8 | uint32(r.ConnFeatures)<<24
}

// WriteProbe sends the magic with connection features followed by the
// protocol offers in preference order.
func WriteProbe(w io.Writer, features ConnFeature, offers []Offer) error {
	if len(offers) == 0 {
		return ErrNoOffers
	}
	if len(offers) > maxOffers {
		return ErrTooManyOffers
	}
	buf := make([]byte, 4*(1+len(offers)))
	binary.BigEndian.PutUint32(buf[0:4], ProbeMagic|uint32(features))
	for i, o := range offers {
		v := uint32(o.ID) | uint32(o.Features)<<8
		if i == len(offers)-1 {
			v |= probeListEnd
		}
		binary.BigEndian.PutUint32(buf[4*(i+1):], v)
	}
	_, err := w.Write(buf)
	return err
}

func ReadProbeReply(r io.Reader) (ProbeReply, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ProbeReply{}, fmt.Errorf("session: read probe reply: %w", err)
	}
	v := binary.BigEndian.Uint32(b[:])
	return ProbeReply{
		Protocol:         uint8(v),
		ProtocolFeatures: uint16(v >> 8),
		ConnFeatures:     ConnFeature(v >> 24),
	}, nil
}

// ReadProbe is the core side of WriteProbe.
func ReadProbe(r io.Reader) (ConnFeature, []Offer, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, nil, err
	}
	head := binary.BigEndian.Uint32(b[:])
	if head&0xffffff00 != ProbeMagic {
		return 0, nil, ErrBadProbeMagic
	}
	features := ConnFeature(head & 0xff)
	var offers []Offer
	for {
		if len(offers) == maxOffers {
			return 0, nil, ErrTooManyOffers
		}
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, nil, err
		}
		v := binary.BigEndian.Uint32(b[:])
		offers = append(offers, Offer{ID: uint8(v), Features: uint16(v >> 8)})
		if v&probeListEnd != 0 {
			return features, offers, nil
		}
	}
}

// WriteProbeReply is the core side of ReadProbeReply.
func WriteProbeReply(w io.Writer, reply ProbeReply) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], encodeReply(reply))
	_, err := w.Write(b[:])
	return err
}
