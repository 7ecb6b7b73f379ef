package qtds

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/text/encoding/unicode"
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// Encoder appends QDataStream-encoded values to an internal buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes; valid until the next write or Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteUint16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) WriteInt8(v int8)   { e.WriteUint8(uint8(v)) }
func (e *Encoder) WriteInt16(v int16) { e.WriteUint16(uint16(v)) }
func (e *Encoder) WriteInt32(v int32) { e.WriteUint32(uint32(v)) }
func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 0x01)
	} else {
		e.buf = append(e.buf, 0x00)
	}
}

func (e *Encoder) WriteDouble(v float64) {
	e.WriteUint64(math.Float64bits(v))
}

// WriteString writes a QString: byte length followed by UTF-16BE code units.
func (e *Encoder) WriteString(s string) error {
	if s == "" {
		e.WriteUint32(0)
		return nil
	}
	enc, err := utf16BE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return fmt.Errorf("qtds: encode string: %w", err)
	}
	e.WriteUint32(uint32(len(enc)))
	e.buf = append(e.buf, enc...)
	return nil
}

// WriteByteArray writes a QByteArray. A nil slice is written as the null array.
func (e *Encoder) WriteByteArray(b []byte) {
	if b == nil {
		e.WriteUint32(nullLength)
		return
	}
	e.WriteUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteCString writes a NUL-terminated string with a length prefix that
// includes the terminator, as Qt does for user type names.
func (e *Encoder) WriteCString(s string) {
	e.WriteUint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

func (e *Encoder) WriteStringList(list []string) error {
	e.WriteUint32(uint32(len(list)))
	for _, s := range list {
		if err := e.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) WriteDate(d Date) {
	e.WriteUint32(uint32(d))
}

func (e *Encoder) WriteTime(t Time) {
	e.WriteUint32(uint32(t))
}

// WriteDateTime writes a QDateTime in UTC.
func (e *Encoder) WriteDateTime(t time.Time) {
	if t.IsZero() {
		e.WriteDate(0)
		e.WriteTime(NullTime)
		e.WriteUint8(1)
		return
	}
	u := t.UTC()
	e.WriteDate(DateOf(u))
	e.WriteTime(TimeOfDay(u))
	e.WriteUint8(1)
}

// WriteList writes a QVariantList.
func (e *Encoder) WriteList(list []any) error {
	e.WriteUint32(uint32(len(list)))
	for i, v := range list {
		if err := e.WriteVariant(v); err != nil {
			return fmt.Errorf("list[%d]: %w", i, err)
		}
	}
	return nil
}

// WriteMap writes a QVariantMap with keys in sorted order.
func (e *Encoder) WriteMap(m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.WriteUint32(uint32(len(keys)))
	for _, k := range keys {
		if err := e.WriteString(k); err != nil {
			return err
		}
		if err := e.WriteVariant(m[k]); err != nil {
			return fmt.Errorf("map[%q]: %w", k, err)
		}
	}
	return nil
}

func (e *Encoder) writeHeader(t Type, null bool) {
	e.WriteUint32(uint32(t))
	e.WriteBool(null)
}

// WriteVariant writes v as a QVariant, inferring the Qt type from the Go type.
func (e *Encoder) WriteVariant(v any) error {
	switch x := v.(type) {
	case nil:
		e.writeHeader(TypeInvalid, true)
	case UserValue:
		e.writeHeader(TypeUserType, false)
		e.WriteCString(x.QtTypeName())
		return x.MarshalQt(e)
	case bool:
		e.writeHeader(TypeBool, false)
		e.WriteBool(x)
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			e.writeHeader(TypeInt, false)
			e.WriteInt32(int32(x))
		} else {
			e.writeHeader(TypeLongLong, false)
			e.WriteInt64(int64(x))
		}
	case int8:
		e.writeHeader(TypeSChar, false)
		e.WriteInt8(x)
	case int16:
		e.writeHeader(TypeShort, false)
		e.WriteInt16(x)
	case int32:
		e.writeHeader(TypeInt, false)
		e.WriteInt32(x)
	case int64:
		e.writeHeader(TypeLongLong, false)
		e.WriteInt64(x)
	case uint8:
		e.writeHeader(TypeUChar, false)
		e.WriteUint8(x)
	case uint16:
		e.writeHeader(TypeUShort, false)
		e.WriteUint16(x)
	case uint32:
		e.writeHeader(TypeUInt, false)
		e.WriteUint32(x)
	case uint64:
		e.writeHeader(TypeULongLong, false)
		e.WriteUint64(x)
	case float64:
		e.writeHeader(TypeDouble, false)
		e.WriteDouble(x)
	case Char:
		e.writeHeader(TypeChar, false)
		e.WriteUint16(uint16(x))
	case string:
		e.writeHeader(TypeString, false)
		return e.WriteString(x)
	case []byte:
		e.writeHeader(TypeByteArray, x == nil)
		e.WriteByteArray(x)
	case []string:
		e.writeHeader(TypeStringList, false)
		return e.WriteStringList(x)
	case []any:
		e.writeHeader(TypeList, false)
		return e.WriteList(x)
	case map[string]any:
		e.writeHeader(TypeMap, false)
		return e.WriteMap(x)
	case Date:
		e.writeHeader(TypeDate, !x.Valid())
		e.WriteDate(x)
	case Time:
		e.writeHeader(TypeTime, !x.Valid())
		e.WriteTime(x)
	case time.Time:
		e.writeHeader(TypeDateTime, x.IsZero())
		e.WriteDateTime(x)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

// Marshal encodes v as a single QVariant.
func Marshal(v any) ([]byte, error) {
	e := NewEncoder()
	if err := e.WriteVariant(v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// MarshalList encodes list as a bare QVariantList without a variant header.
func MarshalList(list []any) ([]byte, error) {
	e := NewEncoder()
	if err := e.WriteList(list); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}
