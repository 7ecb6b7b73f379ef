// Package client drives one connection to a core: probe negotiation,
// protocol construction, the login handshake, and the synced object model
// that mirrors core state afterwards.
//
// Ownership boundary: a Conn owns its Protocol and every object it creates.
// All model mutation happens on the goroutine running Conn.Run.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/danmuck/libquassel/internal/buffer"
	"github.com/danmuck/libquassel/internal/bufferview"
	"github.com/danmuck/libquassel/internal/identity"
	logs "github.com/danmuck/libquassel/internal/logging"
	"github.com/danmuck/libquassel/internal/protocol"
	"github.com/danmuck/libquassel/internal/protocol/session"
	"github.com/danmuck/libquassel/internal/router"
	"github.com/danmuck/libquassel/internal/user"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured     = errors.New("client: core is not configured")
	ErrInitRejected      = errors.New("client: core rejected client init")
	ErrLoginRejected     = errors.New("client: core rejected login")
	ErrHandshakeTimeout  = errors.New("client: handshake timed out")
	ErrUnexpectedMessage = errors.New("client: unexpected handshake message")
)

// Options configures a client connection.
type Options struct {
	Session session.Config
	// Protocols lists variant names in preference order; empty offers all.
	Protocols     []string
	ClientVersion string
	ClientDate    string
	User          string
	Password      string
	// BacklogLimit is the per-buffer history kept in memory and requested
	// from the core after login; zero disables both.
	BacklogLimit int

	// OnReady runs once every initial object snapshot has arrived.
	OnReady func(*Conn)
	// OnMessage runs for every live message added to a buffer.
	OnMessage func(*buffer.Buffer, *buffer.Message)
}

func (o Options) withDefaults() Options {
	if o.ClientVersion == "" {
		o.ClientVersion = "libquassel-go"
	}
	if o.ClientDate == "" {
		o.ClientDate = time.Now().UTC().Format("Jan 02 2006 15:04:05")
	}
	return o
}

// State is the handshake progress of a Conn.
type State int32

const (
	StateInit State = iota
	StateLogin
	StateSession
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLogin:
		return "login"
	case StateSession:
		return "session"
	case StateReady:
		return "ready"
	default:
		return "closed"
	}
}

// Conn is one negotiated connection and its object model.
type Conn struct {
	ID    string
	opts  Options
	proto protocol.Protocol
	log   logs.Scope

	Router     *router.Router
	Buffers    *buffer.Collection
	Syncer     *buffer.Syncer
	Views      *bufferview.Manager
	Identities map[int]*identity.Identity
	Networks   map[int]*Network
	// Users is keyed by IrcUser object name, "<networkId>/<nick>".
	Users map[string]*user.User

	state    atomic.Int32
	pending  map[objectKey]struct{}
	lastPing atomic.Int64
	lag      atomic.Int64
}

type objectKey struct {
	class  string
	object string
}

// Probe connects to addr, performs the protocol probe, and returns the
// core's selection together with the open stream.
func Probe(ctx context.Context, addr string, opts Options) (net.Conn, session.ProbeReply, error) {
	cfg := opts.Session
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, session.ProbeReply{}, err
	}
	variants, err := protocol.Preferred(opts.Protocols)
	if err != nil {
		return nil, session.ProbeReply{}, err
	}
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, session.ProbeReply{}, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	offers := make([]session.Offer, len(variants))
	for i, v := range variants {
		offers[i] = session.Offer{ID: v.ID, Features: v.Features}
	}
	if cfg.HandshakeTimeout > 0 {
		_ = raw.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
	}
	if err := session.WriteProbe(raw, cfg.Features(), offers); err != nil {
		raw.Close()
		return nil, session.ProbeReply{}, fmt.Errorf("client: write probe: %w", err)
	}
	reply, err := session.ReadProbeReply(raw)
	if err != nil {
		raw.Close()
		return nil, session.ProbeReply{}, err
	}
	_ = raw.SetDeadline(time.Time{})
	logs.Debugf("client.Probe addr=%s protocol=0x%02x conn_features=0x%02x", addr, reply.Protocol, uint8(reply.ConnFeatures))
	return raw, reply, nil
}

// Dial connects, negotiates, and builds the selected protocol variant. The
// returned Conn is idle until Run is called.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	raw, reply, err := Probe(ctx, addr, opts)
	if err != nil {
		return nil, err
	}
	tlsCfg, err := session.ClientTLSConfig(opts.Session.TLS)
	if err != nil {
		raw.Close()
		return nil, err
	}
	id := uuid.NewString()
	popts := protocol.Options{
		UseCompression: reply.ConnFeatures.Has(session.FeatureCompression),
		UseTLS:         reply.ConnFeatures.Has(session.FeatureTLS),
		TLSConfig:      tlsCfg,
		ConnID:         id,
	}
	if reply.Protocol == protocol.LegacyID {
		// Legacy cores negotiate TLS after ClientInitAck and never compress.
		popts.UseTLS = opts.Session.TLS.Enabled
		popts.UseCompression = false
	}
	p, err := protocol.New(reply.Protocol, raw, popts)
	if err != nil {
		raw.Close()
		return nil, err
	}
	c := newConn(p, opts, id)
	c.log.Infof("client.Dial addr=%s protocol=%s tls=%v compression=%v", addr, p.Name(), popts.UseTLS, popts.UseCompression)
	return c, nil
}

// NewConn wraps an already-constructed protocol.
func NewConn(p protocol.Protocol, opts Options) *Conn {
	return newConn(p, opts, uuid.NewString())
}

func newConn(p protocol.Protocol, opts Options, id string) *Conn {
	c := &Conn{
		ID:         id,
		opts:       opts.withDefaults(),
		proto:      p,
		log:        logs.With("conn", id),
		Router:     router.New(),
		Buffers:    buffer.NewCollection(),
		Views:      bufferview.NewManager(),
		Identities: make(map[int]*identity.Identity),
		Networks:   make(map[int]*Network),
		Users:      make(map[string]*user.User),
		pending:    make(map[objectKey]struct{}),
	}
	c.Syncer = buffer.NewSyncer(c.Buffers)
	c.wire()
	return c
}

func (c *Conn) Protocol() protocol.Protocol { return c.proto }

func (c *Conn) State() State { return State(c.state.Load()) }

// Lag returns the last measured heartbeat round trip.
func (c *Conn) Lag() time.Duration { return time.Duration(c.lag.Load()) }

func (c *Conn) Close() error {
	c.state.Store(int32(StateClosed))
	return c.proto.Close()
}

func (c *Conn) legacy() bool {
	return c.proto.ID() == protocol.LegacyID
}
