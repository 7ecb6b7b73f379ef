package client

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/libquassel/internal/buffer"
	"github.com/danmuck/libquassel/internal/identity"
	"github.com/danmuck/libquassel/internal/observability"
	"github.com/danmuck/libquassel/internal/protocol"
	"github.com/danmuck/libquassel/internal/protocol/handshake"
	"github.com/danmuck/libquassel/internal/protocol/qtds"
)

// Run starts the protocol read pipeline, performs the handshake, and
// dispatches events until the stream ends or ctx is cancelled. A clean end
// of stream returns nil.
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- c.proto.Run(ctx) }()

	if err := c.sendClientInit(); err != nil {
		c.proto.Close()
		<-runErr
		return err
	}

	var handshakeTimeout <-chan time.Time
	if d := c.opts.Session.HandshakeTimeout; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		handshakeTimeout = t.C
	}
	var heartbeat <-chan time.Time
	if d := c.opts.Session.HeartbeatInterval; d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		heartbeat = t.C
	}

	events := c.proto.Events()
	var fatal error
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				err := <-runErr
				c.state.Store(int32(StateClosed))
				if fatal != nil {
					return fatal
				}
				return err
			}
			if fatal != nil {
				continue
			}
			if err := c.handle(ev); err != nil {
				c.log.Errf("client.Run stopping err=%v", err)
				fatal = err
				cancel()
			}
		case <-handshakeTimeout:
			if c.State() < StateSession && fatal == nil {
				fatal = ErrHandshakeTimeout
				cancel()
			}
		case <-heartbeat:
			if c.State() == StateReady {
				c.ping()
			}
		}
	}
}

func (c *Conn) sendClientInit() error {
	cfg := c.opts.Session
	msg := handshake.ClientInit{
		ClientVersion:   c.opts.ClientVersion,
		ClientDate:      c.opts.ClientDate,
		UseSSL:          cfg.TLS.Enabled,
		UseCompression:  false,
		ProtocolVersion: 10,
	}.Message(c.legacy())
	return c.proto.Write(msg)
}

// handle processes one event; a non-nil error ends the connection.
func (c *Conn) handle(ev protocol.Event) error {
	switch ev.Kind {
	case protocol.EventMsgType:
		return c.handleHandshake(ev.Message)
	case protocol.EventInitData:
		delete(c.pending, objectKey{ev.ClassName, ev.ObjectName})
		if err := c.Router.Dispatch(ev); err != nil {
			c.log.Warnf("client.handle initdata class=%s object=%q err=%v", ev.ClassName, ev.ObjectName, err)
		}
		c.maybeReady()
	case protocol.EventStruct:
		rt, _ := ev.RequestType()
		switch rt {
		case protocol.HeartBeat:
			c.pong(ev.Frame)
		case protocol.HeartBeatReply:
			c.measure(ev.Frame)
		default:
			if err := c.Router.Dispatch(ev); err != nil {
				c.log.Warnf("client.handle struct request=%s err=%v", rt, err)
			}
		}
	case protocol.EventError:
		c.log.Warnf("client.handle stream error err=%v", ev.Err)
	case protocol.EventEnd, protocol.EventClose:
		c.log.Debugf("client.handle stream %s", ev.Kind)
	}
	return nil
}

func (c *Conn) handleHandshake(msg map[string]any) error {
	if err := handshake.Validate(msg); err != nil {
		return err
	}
	msgType, _ := msg["MsgType"].(string)
	switch msgType {
	case handshake.MsgClientInitAck:
		ack, err := handshake.ParseInitAck(msg)
		if err != nil {
			return err
		}
		if !ack.Configured {
			return ErrNotConfigured
		}
		c.state.Store(int32(StateLogin))
		return c.proto.Write(handshake.ClientLogin{User: c.opts.User, Password: c.opts.Password}.Message())
	case handshake.MsgClientInitReject:
		return fmt.Errorf("%w: %s", ErrInitRejected, handshake.RejectReason(msg))
	case handshake.MsgClientLoginReject:
		return fmt.Errorf("%w: %s", ErrLoginRejected, handshake.RejectReason(msg))
	case handshake.MsgClientLoginAck:
		c.log.Debugf("client.handshake login accepted")
		return nil
	case handshake.MsgSessionInit:
		st, err := handshake.ParseSessionInit(msg)
		if err != nil {
			return err
		}
		return c.startSession(st)
	}
	return fmt.Errorf("%w: %s", ErrUnexpectedMessage, msgType)
}

// startSession populates the model from SessionInit and requests the
// initial object snapshots. Writes are batched without per-message flush
// for IdleFlushAfter from here on.
func (c *Conn) startSession(st handshake.SessionState) error {
	c.state.Store(int32(StateSession))
	for _, bi := range st.BufferInfos {
		c.Buffers.AddBuffer(buffer.FromInfo(buffer.InfoFromWire(bi)))
	}
	for _, fields := range st.Identities {
		id, err := identity.New(fields)
		if err != nil {
			c.log.Warnf("client.startSession skipping identity err=%v", err)
			continue
		}
		c.addIdentity(id)
	}

	if d := c.opts.Session.IdleFlushAfter; d > 0 {
		c.proto.SetFlush(false)
		time.AfterFunc(d, func() { c.proto.SetFlush(true) })
	}
	requests := []objectKey{{"BufferSyncer", ""}, {"BufferViewManager", ""}}
	for _, netID := range st.NetworkIDs {
		c.addNetwork(int(netID))
		requests = append(requests, objectKey{"Network", fmt.Sprint(int(netID))})
	}
	for _, req := range requests {
		if err := c.requestInit(req.class, req.object); err != nil {
			return err
		}
	}
	c.maybeReady()
	return nil
}

func (c *Conn) requestInit(class, object string) error {
	c.pending[objectKey{class, object}] = struct{}{}
	return c.proto.SendInitRequest(class, object)
}

func (c *Conn) maybeReady() {
	if c.State() != StateSession || len(c.pending) > 0 {
		return
	}
	c.state.Store(int32(StateReady))
	c.log.Infof("client.ready buffers=%d views=%d networks=%d", c.Buffers.Len(), c.Views.Len(), len(c.Networks))
	c.requestBacklog()
	if c.opts.OnReady != nil {
		c.opts.OnReady(c)
	}
}

// SendSync calls a slot on a core-side object.
func (c *Conn) SendSync(class, object, slot string, params ...any) error {
	var name any = []byte(object)
	if c.legacy() {
		name = object
	}
	frame := append([]any{int32(protocol.Sync), []byte(class), name, []byte(slot)}, params...)
	return c.proto.Write(frame)
}

func (c *Conn) requestBacklog() {
	if c.opts.BacklogLimit <= 0 {
		return
	}
	for _, b := range c.Buffers.All() {
		err := c.SendSync("BacklogManager", "", "requestBacklog",
			qtds.BufferID(b.ID), qtds.MsgID(-1), qtds.MsgID(-1), int32(c.opts.BacklogLimit), int32(0))
		if err != nil {
			c.log.Warnf("client.requestBacklog buffer=%d err=%v", b.ID, err)
			return
		}
	}
}

func (c *Conn) ping() {
	now := time.Now()
	c.lastPing.Store(now.UnixNano())
	if err := c.proto.SendHeartbeat(now, false); err != nil {
		c.log.Warnf("client.ping err=%v", err)
	}
}

// pong answers a core heartbeat with the timestamp it carried.
func (c *Conn) pong(frame []any) {
	at := time.Now()
	if len(frame) > 1 {
		if t, ok := frame[1].(time.Time); ok && !t.IsZero() {
			at = t
		}
	}
	if err := c.proto.SendHeartbeat(at, true); err != nil {
		c.log.Warnf("client.pong err=%v", err)
	}
}

func (c *Conn) measure(frame []any) {
	sent := time.Unix(0, c.lastPing.Load())
	if len(frame) > 1 {
		if t, ok := frame[1].(time.Time); ok && !t.IsZero() {
			sent = t
		}
	}
	if sent.UnixNano() <= 0 {
		return
	}
	rtt := time.Since(sent)
	if rtt < 0 {
		rtt = 0
	}
	c.lag.Store(int64(rtt))
	observability.RecordHeartbeatRTT(c.proto.Name(), rtt)
}
