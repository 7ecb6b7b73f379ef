package qtds

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

// Decoder reads QDataStream-encoded values from a byte slice.
type Decoder struct {
	buf   []byte
	pos   int
	depth int
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) ReadUint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (d *Decoder) ReadUint64() (uint64, error) {
	hi, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	lo, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

func (d *Decoder) ReadInt8() (int8, error) {
	v, err := d.ReadUint8()
	return int8(v), err
}

func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadUint8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

func (d *Decoder) ReadDouble() (float64, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// readLength reads a length prefix and bounds-checks it. null reports the
// 0xFFFFFFFF marker.
func (d *Decoder) readLength() (n int, null bool, err error) {
	raw, err := d.ReadUint32()
	if err != nil {
		return 0, false, err
	}
	if raw == nullLength {
		return 0, true, nil
	}
	if raw > MaxAllocation {
		return 0, false, ErrAllocationTooLarge
	}
	if int(raw) > d.Remaining() {
		return 0, false, io.ErrUnexpectedEOF
	}
	return int(raw), false, nil
}

func (d *Decoder) readCount() (int, error) {
	raw, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	if raw > MaxCollectionCount {
		return 0, ErrCollectionTooLarge
	}
	return int(raw), nil
}

// ReadString reads a QString. The null string decodes as "".
func (d *Decoder) ReadString() (string, error) {
	n, null, err := d.readLength()
	if err != nil || null || n == 0 {
		return "", err
	}
	if n%2 != 0 {
		return "", ErrOddUTF16
	}
	raw, err := d.take(n)
	if err != nil {
		return "", err
	}
	out, err := utf16BE.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("qtds: decode string: %w", err)
	}
	return string(out), nil
}

// ReadByteArray reads a QByteArray. The null array decodes as nil; the
// returned slice is a copy.
func (d *Decoder) ReadByteArray() ([]byte, error) {
	n, null, err := d.readLength()
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	raw, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, raw)
	return out, nil
}

// ReadCString reads a length-prefixed, NUL-terminated type name.
func (d *Decoder) ReadCString() (string, error) {
	n, null, err := d.readLength()
	if err != nil || null {
		return "", err
	}
	raw, err := d.take(n)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

func (d *Decoder) ReadStringList() ([]string, error) {
	n, err := d.readCount()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		s, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *Decoder) ReadDate() (Date, error) {
	v, err := d.ReadUint32()
	return Date(v), err
}

func (d *Decoder) ReadTime() (Time, error) {
	v, err := d.ReadUint32()
	return Time(v), err
}

// ReadDateTime reads a QDateTime. Local time specs are interpreted in time.Local.
func (d *Decoder) ReadDateTime() (time.Time, error) {
	date, err := d.ReadDate()
	if err != nil {
		return time.Time{}, err
	}
	tod, err := d.ReadTime()
	if err != nil {
		return time.Time{}, err
	}
	spec, err := d.ReadUint8()
	if err != nil {
		return time.Time{}, err
	}
	if !date.Valid() {
		return time.Time{}, nil
	}
	t := date.Time().Add(tod.Duration())
	if spec == 0 {
		y, m, dd := t.Date()
		h, mi, s := t.Clock()
		return time.Date(y, m, dd, h, mi, s, t.Nanosecond(), time.Local), nil
	}
	return t, nil
}

func (d *Decoder) enter() error {
	d.depth++
	if d.depth > MaxDepth {
		return ErrMaxDepth
	}
	return nil
}

func (d *Decoder) leave() {
	d.depth--
}

// ReadList reads a QVariantList.
func (d *Decoder) ReadList() ([]any, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()
	n, err := d.readCount()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		v, err := d.ReadVariant()
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadMap reads a QVariantMap.
func (d *Decoder) ReadMap() (map[string]any, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()
	n, err := d.readCount()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, min(n, 1024))
	for i := 0; i < n; i++ {
		k, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := d.ReadVariant()
		if err != nil {
			return nil, fmt.Errorf("map[%q]: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// ReadVariant reads one QVariant and returns its Go representation.
func (d *Decoder) ReadVariant() (any, error) {
	raw, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if _, err := d.ReadBool(); err != nil {
		return nil, err
	}
	switch t := Type(raw); t {
	case TypeInvalid:
		return nil, nil
	case TypeBool:
		return d.ReadBool()
	case TypeInt:
		return d.ReadInt32()
	case TypeUInt:
		return d.ReadUint32()
	case TypeLongLong:
		return d.ReadInt64()
	case TypeULongLong:
		return d.ReadUint64()
	case TypeDouble:
		return d.ReadDouble()
	case TypeChar:
		v, err := d.ReadUint16()
		return Char(v), err
	case TypeMap:
		return d.ReadMap()
	case TypeList:
		return d.ReadList()
	case TypeString:
		return d.ReadString()
	case TypeStringList:
		return d.ReadStringList()
	case TypeByteArray:
		return d.ReadByteArray()
	case TypeDate:
		return d.ReadDate()
	case TypeTime:
		return d.ReadTime()
	case TypeDateTime:
		return d.ReadDateTime()
	case TypeShort:
		return d.ReadInt16()
	case TypeSChar:
		return d.ReadInt8()
	case TypeUShort:
		return d.ReadUint16()
	case TypeUChar:
		return d.ReadUint8()
	case TypeUserType:
		name, err := d.ReadCString()
		if err != nil {
			return nil, err
		}
		return d.readUserType(name)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, raw)
	}
}

// Unmarshal decodes exactly one QVariant from b.
func Unmarshal(b []byte) (any, error) {
	d := NewDecoder(b)
	v, err := d.ReadVariant()
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return v, fmt.Errorf("%w: %d bytes", ErrTrailingData, d.Remaining())
	}
	return v, nil
}

// UnmarshalList decodes a bare QVariantList occupying all of b.
func UnmarshalList(b []byte) ([]any, error) {
	d := NewDecoder(b)
	v, err := d.ReadList()
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return v, fmt.Errorf("%w: %d bytes", ErrTrailingData, d.Remaining())
	}
	return v, nil
}
