package qtds

import (
	"errors"
	"time"
)

// Type is a QVariant type id as written by a Qt 4.2 datastream.
type Type uint32

const (
	TypeInvalid    Type = 0
	TypeBool       Type = 1
	TypeInt        Type = 2
	TypeUInt       Type = 3
	TypeLongLong   Type = 4
	TypeULongLong  Type = 5
	TypeDouble     Type = 6
	TypeChar       Type = 7
	TypeMap        Type = 8
	TypeList       Type = 9
	TypeString     Type = 10
	TypeStringList Type = 11
	TypeByteArray  Type = 12
	TypeDate       Type = 14
	TypeTime       Type = 15
	TypeDateTime   Type = 16
	TypeUserType   Type = 127
	TypeShort      Type = 130
	TypeSChar      Type = 131
	TypeUShort     Type = 133
	TypeUChar      Type = 134
)

func (t Type) String() string {
	switch t {
	case TypeInvalid:
		return "Invalid"
	case TypeBool:
		return "Bool"
	case TypeInt:
		return "Int"
	case TypeUInt:
		return "UInt"
	case TypeLongLong:
		return "LongLong"
	case TypeULongLong:
		return "ULongLong"
	case TypeDouble:
		return "Double"
	case TypeChar:
		return "QChar"
	case TypeMap:
		return "QVariantMap"
	case TypeList:
		return "QVariantList"
	case TypeString:
		return "QString"
	case TypeStringList:
		return "QStringList"
	case TypeByteArray:
		return "QByteArray"
	case TypeDate:
		return "QDate"
	case TypeTime:
		return "QTime"
	case TypeDateTime:
		return "QDateTime"
	case TypeUserType:
		return "UserType"
	case TypeShort:
		return "Short"
	case TypeSChar:
		return "Char"
	case TypeUShort:
		return "UShort"
	case TypeUChar:
		return "UChar"
	default:
		return "Unknown"
	}
}

// Allocation limits applied while decoding untrusted input.
const (
	MaxAllocation      = 16 * 1024 * 1024
	MaxCollectionCount = 1_000_000
	MaxDepth           = 64

	nullLength uint32 = 0xFFFFFFFF

	// julianDayUnixEpoch is the Julian day number of 1970-01-01.
	julianDayUnixEpoch = 2440588
	msPerDay           = 24 * 60 * 60 * 1000
)

var (
	ErrUnsupportedValue   = errors.New("qtds: unsupported value")
	ErrUnknownType        = errors.New("qtds: unknown variant type")
	ErrUnknownUserType    = errors.New("qtds: unknown user type")
	ErrAllocationTooLarge = errors.New("qtds: allocation size exceeds limit")
	ErrCollectionTooLarge = errors.New("qtds: collection count exceeds limit")
	ErrMaxDepth           = errors.New("qtds: nesting depth exceeds limit")
	ErrInvalidBool        = errors.New("qtds: invalid boolean value")
	ErrOddUTF16           = errors.New("qtds: odd utf-16 byte length")
	ErrTrailingData       = errors.New("qtds: trailing data after value")
)

// Char is a single QChar (one UTF-16 code unit).
type Char uint16

// Time is a QTime: milliseconds since midnight. NullTime marks an invalid time.
type Time uint32

const NullTime Time = Time(nullLength)

// TimeOfDay converts the wall clock of t to a QTime at millisecond precision.
func TimeOfDay(t time.Time) Time {
	h, m, s := t.Clock()
	ms := ((h*60+m)*60+s)*1000 + t.Nanosecond()/int(time.Millisecond)
	return Time(ms)
}

// SecondsOfDay converts the wall clock of t to a QTime truncated to whole seconds.
func SecondsOfDay(t time.Time) Time {
	h, m, s := t.Clock()
	return Time(((h*60+m)*60 + s) * 1000)
}

func (t Time) Valid() bool { return t != NullTime && t < msPerDay }

// Duration returns the offset from midnight.
func (t Time) Duration() time.Duration {
	if !t.Valid() {
		return 0
	}
	return time.Duration(t) * time.Millisecond
}

// Date is a QDate expressed as a Julian day number; zero is the null date.
type Date uint32

// DateOf returns the QDate of t's calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Date(day.Unix()/86400 + julianDayUnixEpoch)
}

func (d Date) Valid() bool { return d != 0 }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	if !d.Valid() {
		return time.Time{}
	}
	days := int64(d) - julianDayUnixEpoch
	return time.Unix(days*86400, 0).UTC()
}
