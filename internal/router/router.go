// Package router dispatches initdata and struct events to the synced
// objects of one connection, keyed by class and object name.
//
// Ownership boundary: the router holds references to receivers but does not
// own their state; it is driven from a single goroutine.
package router

import (
	"errors"
	"fmt"

	logs "github.com/danmuck/libquassel/internal/logging"
	"github.com/danmuck/libquassel/internal/observability"
	"github.com/danmuck/libquassel/internal/protocol"
)

var (
	ErrMalformedFrame = errors.New("router: malformed frame")
	ErrNoReceiver     = errors.New("router: no receiver")
)

// Receiver is a synced object.
type Receiver interface {
	// InitData applies a full snapshot.
	InitData(params map[string]any) error
	// Sync applies one incremental slot call.
	Sync(slot string, params []any) error
}

// Factory creates a receiver for an object seen for the first time.
// Returning nil leaves the object unrouted.
type Factory func(objectName string) Receiver

// RPCHandler handles one RpcCall signal.
type RPCHandler func(params []any) error

type key struct {
	class  string
	object string
}

type Router struct {
	receivers map[key]Receiver
	factories map[string]Factory
	rpc       map[string]RPCHandler
}

func New() *Router {
	return &Router{
		receivers: make(map[key]Receiver),
		factories: make(map[string]Factory),
		rpc:       make(map[string]RPCHandler),
	}
}

func (r *Router) Register(class, object string, rcv Receiver) {
	r.receivers[key{class, object}] = rcv
}

func (r *Router) Unregister(class, object string) {
	delete(r.receivers, key{class, object})
}

// Rename moves a receiver to a new object name.
func (r *Router) Rename(class, newName, oldName string) bool {
	rcv, ok := r.receivers[key{class, oldName}]
	if !ok {
		return false
	}
	delete(r.receivers, key{class, oldName})
	r.receivers[key{class, newName}] = rcv
	return true
}

func (r *Router) Lookup(class, object string) (Receiver, bool) {
	rcv, ok := r.receivers[key{class, object}]
	return rcv, ok
}

// RegisterFactory installs the constructor used for unknown objects of class.
func (r *Router) RegisterFactory(class string, f Factory) {
	r.factories[class] = f
}

// HandleRPC installs the handler for an RpcCall signal such as
// "2displayMsg(Message)".
func (r *Router) HandleRPC(signal string, h RPCHandler) {
	r.rpc[signal] = h
}

func (r *Router) resolve(class, object string) (Receiver, bool) {
	if rcv, ok := r.receivers[key{class, object}]; ok {
		return rcv, true
	}
	f, ok := r.factories[class]
	if !ok {
		return nil, false
	}
	rcv := f(object)
	if rcv == nil {
		return nil, false
	}
	r.receivers[key{class, object}] = rcv
	return rcv, true
}

// Dispatch routes one event. Events without a receiver are counted and
// dropped; receiver errors are returned wrapped with the target name.
func (r *Router) Dispatch(ev protocol.Event) error {
	switch ev.Kind {
	case protocol.EventInitData:
		return r.initData(ev)
	case protocol.EventStruct:
		rt, ok := ev.RequestType()
		if !ok {
			return fmt.Errorf("%w: missing request type", ErrMalformedFrame)
		}
		switch rt {
		case protocol.Sync:
			return r.sync(ev.Frame)
		case protocol.RpcCall:
			return r.call(ev.Frame)
		}
		observability.RecordDispatch(rt.String(), "", false)
		logs.Debugf("router.Dispatch unrouted request=%s", rt)
		return nil
	}
	return nil
}

func (r *Router) initData(ev protocol.Event) error {
	rcv, ok := r.resolve(ev.ClassName, ev.ObjectName)
	observability.RecordDispatch("InitData", ev.ClassName, ok)
	if !ok {
		logs.Debugf("router.Dispatch initdata without receiver class=%s object=%q", ev.ClassName, ev.ObjectName)
		return nil
	}
	params := ev.Params
	if params == nil {
		if ev.Raw != nil {
			return fmt.Errorf("%w: initdata %s/%s params %T", ErrMalformedFrame, ev.ClassName, ev.ObjectName, ev.Raw)
		}
		params = map[string]any{}
	}
	if err := rcv.InitData(params); err != nil {
		return fmt.Errorf("router: initdata %s/%s: %w", ev.ClassName, ev.ObjectName, err)
	}
	return nil
}

func (r *Router) sync(frame []any) error {
	if len(frame) < 4 {
		return fmt.Errorf("%w: sync frame with %d elements", ErrMalformedFrame, len(frame))
	}
	class, ok1 := protocol.AsString(frame[1])
	object, ok2 := protocol.AsString(frame[2])
	slot, ok3 := protocol.AsString(frame[3])
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("%w: sync header %T %T %T", ErrMalformedFrame, frame[1], frame[2], frame[3])
	}
	rcv, ok := r.resolve(class, object)
	observability.RecordDispatch("Sync", class, ok)
	if !ok {
		logs.Debugf("router.Dispatch sync without receiver class=%s object=%q slot=%s", class, object, slot)
		return nil
	}
	if err := rcv.Sync(slot, frame[4:]); err != nil {
		return fmt.Errorf("router: sync %s/%s.%s: %w", class, object, slot, err)
	}
	return nil
}

func (r *Router) call(frame []any) error {
	if len(frame) < 2 {
		return fmt.Errorf("%w: rpc frame with %d elements", ErrMalformedFrame, len(frame))
	}
	signal, ok := protocol.AsString(frame[1])
	if !ok {
		return fmt.Errorf("%w: rpc signal %T", ErrMalformedFrame, frame[1])
	}
	h, ok := r.rpc[signal]
	observability.RecordDispatch("RpcCall", signal, ok)
	if !ok {
		logs.Debugf("router.Dispatch unhandled rpc signal=%s", signal)
		return nil
	}
	if err := h(frame[2:]); err != nil {
		return fmt.Errorf("router: rpc %s: %w", signal, err)
	}
	return nil
}
