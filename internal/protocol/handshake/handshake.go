package handshake

import (
	"fmt"

	logs "github.com/danmuck/libquassel/internal/logging"
	"github.com/danmuck/libquassel/internal/protocol/qtds"
)

// Handshake message types.
const (
	MsgClientInit        = "ClientInit"
	MsgClientInitAck     = "ClientInitAck"
	MsgClientInitReject  = "ClientInitReject"
	MsgClientLogin       = "ClientLogin"
	MsgClientLoginAck    = "ClientLoginAck"
	MsgClientLoginReject = "ClientLoginReject"
	MsgSessionInit       = "SessionInit"
	MsgCoreSetupData     = "CoreSetupData"
	MsgCoreSetupAck      = "CoreSetupAck"
	MsgCoreSetupReject   = "CoreSetupReject"
)

// Kind is the Go shape a handshake value must decode to.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindBool
	KindInt
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

type Requirement struct {
	Key  string
	Kind Kind
}

type ValidationError struct {
	MsgType string
	Key     string
	Reason  string
}

func (e ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("handshake: msg_type=%q: %s", e.MsgType, e.Reason)
	}
	return fmt.Sprintf("handshake: msg_type=%q key=%s: %s", e.MsgType, e.Key, e.Reason)
}

var requirements = map[string][]Requirement{
	MsgClientInit: {
		{"ClientVersion", KindString},
		{"ClientDate", KindString},
	},
	MsgClientInitAck: {
		{"Configured", KindBool},
	},
	MsgClientInitReject: {
		{"Error", KindString},
	},
	MsgClientLogin: {
		{"User", KindString},
		{"Password", KindString},
	},
	MsgClientLoginAck:    {},
	MsgClientLoginReject: {{"Error", KindString}},
	MsgSessionInit: {
		{"SessionState", KindMap},
	},
	MsgCoreSetupData:   {{"SetupData", KindMap}},
	MsgCoreSetupAck:    {},
	MsgCoreSetupReject: {{"Error", KindString}},
}

// Validate enforces the required keys and value shapes of a handshake map.
// Unknown keys are ignored.
func Validate(msg map[string]any) error {
	msgType, ok := msg["MsgType"].(string)
	if !ok {
		logs.Errf("handshake.Validate missing MsgType keys=%d", len(msg))
		return ValidationError{Key: "MsgType", Reason: "missing message type"}
	}
	logs.Debugf("handshake.Validate msg_type=%s keys=%d", msgType, len(msg))
	reqs, ok := requirements[msgType]
	if !ok {
		logs.Errf("handshake.Validate unknown msg_type=%s", msgType)
		return ValidationError{MsgType: msgType, Reason: "unknown message type"}
	}
	for _, req := range reqs {
		v, found := msg[req.Key]
		if !found {
			logs.Errf("handshake.Validate missing key msg_type=%s key=%s", msgType, req.Key)
			return ValidationError{MsgType: msgType, Key: req.Key, Reason: "missing required key"}
		}
		if !matches(v, req.Kind) {
			logs.Errf(
				"handshake.Validate kind mismatch msg_type=%s key=%s got=%T want=%s",
				msgType,
				req.Key,
				v,
				req.Kind,
			)
			return ValidationError{MsgType: msgType, Key: req.Key, Reason: "kind mismatch"}
		}
	}
	return nil
}

func matches(v any, k Kind) bool {
	switch k {
	case KindString:
		switch v.(type) {
		case string, []byte:
			return true
		}
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindInt:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
			return true
		}
	case KindMap:
		_, ok := v.(map[string]any)
		return ok
	case KindList:
		switch v.(type) {
		case []any, []string:
			return true
		}
	}
	return false
}

// ClientInit announces the client to the core.
type ClientInit struct {
	ClientVersion string
	ClientDate    string
	Features      uint32
	// Legacy-only negotiation fields; the probe carries them otherwise.
	UseSSL          bool
	UseCompression  bool
	ProtocolVersion int32
}

func (c ClientInit) Message(legacy bool) map[string]any {
	m := map[string]any{
		"MsgType":       MsgClientInit,
		"ClientVersion": c.ClientVersion,
		"ClientDate":    c.ClientDate,
		"Features":      c.Features,
	}
	if legacy {
		m["UseSsl"] = c.UseSSL
		m["UseCompression"] = c.UseCompression
		m["ProtocolVersion"] = c.ProtocolVersion
	}
	return m
}

// ClientLogin carries core account credentials.
type ClientLogin struct {
	User     string
	Password string
}

func (c ClientLogin) Message() map[string]any {
	return map[string]any{
		"MsgType":  MsgClientLogin,
		"User":     c.User,
		"Password": c.Password,
	}
}

// InitAck is the parsed ClientInitAck.
type InitAck struct {
	Configured          bool
	SupportsSSL         bool
	SupportsCompression bool
	CoreFeatures        uint32
}

func ParseInitAck(msg map[string]any) (InitAck, error) {
	if err := expect(msg, MsgClientInitAck); err != nil {
		return InitAck{}, err
	}
	ack := InitAck{}
	ack.Configured, _ = msg["Configured"].(bool)
	ack.SupportsSSL, _ = msg["SupportsSSL"].(bool)
	ack.SupportsCompression, _ = msg["SupportsCompression"].(bool)
	if f, ok := msg["CoreFeatures"].(uint32); ok {
		ack.CoreFeatures = f
	}
	return ack, nil
}

// SessionState is the parsed SessionInit payload.
type SessionState struct {
	BufferInfos []qtds.BufferInfo
	NetworkIDs  []qtds.NetworkID
	Identities  []map[string]any
}

func ParseSessionInit(msg map[string]any) (SessionState, error) {
	if err := expect(msg, MsgSessionInit); err != nil {
		return SessionState{}, err
	}
	raw := msg["SessionState"].(map[string]any)
	var st SessionState
	for _, v := range asList(raw["BufferInfos"]) {
		if bi, ok := v.(qtds.BufferInfo); ok {
			st.BufferInfos = append(st.BufferInfos, bi)
		} else {
			logs.Warnf("handshake.ParseSessionInit skipping buffer info type=%T", v)
		}
	}
	for _, v := range asList(raw["NetworkIds"]) {
		if id, ok := v.(qtds.NetworkID); ok {
			st.NetworkIDs = append(st.NetworkIDs, id)
		}
	}
	for _, v := range asList(raw["Identities"]) {
		switch x := v.(type) {
		case qtds.UserMap:
			st.Identities = append(st.Identities, x.Fields)
		case map[string]any:
			st.Identities = append(st.Identities, x)
		}
	}
	return st, nil
}

// RejectReason extracts the Error text of a reject message.
func RejectReason(msg map[string]any) string {
	switch v := msg["Error"].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func expect(msg map[string]any, msgType string) error {
	if err := Validate(msg); err != nil {
		return err
	}
	if got := msg["MsgType"]; got != msgType {
		return ValidationError{MsgType: fmt.Sprint(got), Reason: "expected " + msgType}
	}
	return nil
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}
