package protocol

// EventKind classifies an inbound frame or a stream lifecycle change.
type EventKind string

const (
	EventMsgType  EventKind = "msgtype"
	EventInitData EventKind = "initdata"
	EventStruct   EventKind = "struct"
	EventEnd      EventKind = "end"
	EventClose    EventKind = "close"
	EventError    EventKind = "error"
)

// Event is one item on a Protocol's event channel. Which fields are set
// depends on Kind:
//
//	msgtype   Message
//	initdata  ClassName, ObjectName, Params, Raw
//	struct    Frame
//	error     Err
type Event struct {
	Kind       EventKind
	Message    map[string]any
	ClassName  string
	ObjectName string
	Params     map[string]any
	Raw        any
	Frame      []any
	Err        error
}

// MsgType returns the handshake message type of a msgtype event.
func (e Event) MsgType() string {
	s, _ := e.Message["MsgType"].(string)
	return s
}

// RequestType returns the leading request type of a struct event.
func (e Event) RequestType() (RequestType, bool) {
	if len(e.Frame) == 0 {
		return Invalid, false
	}
	n, ok := AsInt(e.Frame[0])
	return RequestType(n), ok
}
