package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/libquassel/internal/buffer"
	"github.com/danmuck/libquassel/internal/bufferview"
	"github.com/danmuck/libquassel/internal/identity"
	"github.com/danmuck/libquassel/internal/protocol/qtds"
	"github.com/danmuck/libquassel/internal/router"
	"github.com/danmuck/libquassel/internal/user"
)

// wire registers the object receivers and RPC handlers of the model.
func (c *Conn) wire() {
	c.Router.Register("BufferSyncer", "", c.Syncer)
	c.Router.Register("BufferViewManager", "", c.Views)
	c.Router.Register("BacklogManager", "", backlogReceiver{c})

	c.Views.OnAdd = func(v *bufferview.View) {
		object := strconv.Itoa(v.ID)
		c.Router.Register("BufferViewConfig", object, v)
		if c.State() >= StateSession {
			if err := c.requestInit("BufferViewConfig", object); err != nil {
				c.log.Warnf("client.views init request id=%d err=%v", v.ID, err)
			}
		}
	}
	c.Views.OnRemove = func(v *bufferview.View) {
		c.Router.Unregister("BufferViewConfig", strconv.Itoa(v.ID))
	}

	c.Router.RegisterFactory("IrcUser", func(object string) router.Receiver {
		netStr, nick, ok := splitObjectName(object)
		netID, err := strconv.Atoi(netStr)
		if !ok || err != nil || nick == "" {
			c.log.Warnf("client.IrcUser malformed object=%q", object)
			return nil
		}
		if rcv := c.ensureUser(netID, nick, nil); rcv != nil {
			return rcv
		}
		return nil
	})
	c.Router.RegisterFactory("IrcChannel", func(object string) router.Receiver {
		netStr, name, ok := splitObjectName(object)
		netID, err := strconv.Atoi(netStr)
		if !ok || err != nil || name == "" {
			return nil
		}
		return &channelReceiver{c: c, network: netID, name: name}
	})

	c.Router.HandleRPC("2displayMsg(Message)", c.displayMsg)
	c.Router.HandleRPC("2bufferInfoUpdated(BufferInfo)", c.bufferInfoUpdated)
	c.Router.HandleRPC("__objectRenamed__", c.objectRenamed)
	c.Router.HandleRPC("2identityCreated(Identity)", c.identityCreated)
	c.Router.HandleRPC("2identityRemoved(IdentityId)", c.identityRemoved)
	c.Router.HandleRPC("2networkCreated(NetworkId)", c.networkCreated)
	c.Router.HandleRPC("2networkRemoved(NetworkId)", c.networkRemoved)
}

func (c *Conn) addIdentity(id *identity.Identity) {
	c.Identities[id.ID] = id
	c.Router.Register("Identity", strconv.Itoa(id.ID), id)
}

func (c *Conn) addNetwork(id int) *Network {
	if n, ok := c.Networks[id]; ok {
		return n
	}
	n := &Network{ID: id}
	c.Networks[id] = n
	c.Router.Register("Network", strconv.Itoa(id), networkReceiver{c: c, n: n})
	return n
}

// ensureUser returns the receiver for a user of network, creating the user
// on first sighting. It returns nil for an empty mask.
func (c *Conn) ensureUser(network int, mask string, attrs map[string]any) *userReceiver {
	nick, _, _ := strings.Cut(mask, "!")
	object := fmt.Sprintf("%d/%s", network, nick)
	if rcv, ok := c.Router.Lookup("IrcUser", object); ok {
		if ur, ok := rcv.(*userReceiver); ok {
			if err := ur.u.Update(attrs); err != nil {
				c.log.Warnf("client.ensureUser update object=%s err=%v", object, err)
			}
			return ur
		}
	}
	u, err := user.New(mask, attrs)
	if err != nil {
		c.log.Warnf("client.ensureUser network=%d err=%v", network, err)
		return nil
	}
	c.Users[object] = u
	rcv := &userReceiver{c: c, network: network, u: u}
	c.Router.Register("IrcUser", object, rcv)
	return rcv
}

func (c *Conn) userByNick(network int, nick string) *user.User {
	return c.Users[fmt.Sprintf("%d/%s", network, nick)]
}

// rosterBuffers returns the buffers of network holding nick in their roster.
func (c *Conn) rosterBuffers(network int, nick string) []*buffer.Buffer {
	var out []*buffer.Buffer
	for _, b := range c.Buffers.All() {
		if b.Network == network {
			if _, ok := b.Member(nick); ok {
				out = append(out, b)
			}
		}
	}
	return out
}

// userReceiver applies IrcUser slots and keeps channel rosters in step
// with nick changes and quits.
type userReceiver struct {
	c       *Conn
	network int
	u       *user.User
}

func (r *userReceiver) InitData(params map[string]any) error {
	return r.u.Update(params)
}

func (r *userReceiver) Sync(slot string, params []any) error {
	old := r.u.Nick()
	switch slot {
	case "quit":
		for _, b := range r.c.rosterBuffers(r.network, old) {
			b.RemoveUser(old)
		}
		object := fmt.Sprintf("%d/%s", r.network, old)
		delete(r.c.Users, object)
		r.c.Router.Unregister("IrcUser", object)
		return nil
	case "setNick":
		nick, _ := stringArg(firstParam(params))
		return r.rename(nick)
	case "partChannel":
		if name, ok := stringArg(firstParam(params)); ok {
			if b, found := r.c.Buffers.BufferByNetworkName(r.network, name); found {
				b.RemoveUser(old)
			}
		}
	}
	handled, err := r.u.Sync(slot, params)
	if err != nil {
		return err
	}
	if !handled {
		r.c.log.Debugf("client.IrcUser ignored slot=%s nick=%s", slot, old)
	}
	return nil
}

// rename replaces the user with one under the new mask and re-keys the
// rosters, the user table and the router entry.
func (r *userReceiver) rename(nick string) error {
	old := r.u.Nick()
	next, err := r.u.Renamed(nick)
	if err != nil {
		return err
	}
	if next.Nick() == old {
		return nil
	}
	for _, b := range r.c.rosterBuffers(r.network, old) {
		b.UpdateUserMaps(old, next)
	}
	oldObject := fmt.Sprintf("%d/%s", r.network, old)
	newObject := fmt.Sprintf("%d/%s", r.network, next.Nick())
	delete(r.c.Users, oldObject)
	r.c.Users[newObject] = next
	r.u = next
	r.c.Router.Rename("IrcUser", newObject, oldObject)
	return nil
}

func firstParam(params []any) any {
	if len(params) == 0 {
		return nil
	}
	return params[0]
}

// channelReceiver maps IrcChannel membership onto the roster of the
// matching channel buffer.
type channelReceiver struct {
	c       *Conn
	network int
	name    string
}

func (r *channelReceiver) objectName() string {
	return fmt.Sprintf("%d/%s", r.network, r.name)
}

func (r *channelReceiver) buffer() (*buffer.Buffer, bool) {
	b, ok := r.c.Buffers.BufferByNetworkName(r.network, r.name)
	if !ok {
		r.c.log.Debugf("client.IrcChannel no buffer network=%d channel=%s", r.network, r.name)
	}
	return b, ok
}

func (r *channelReceiver) InitData(params map[string]any) error {
	b, ok := r.buffer()
	if !ok {
		return nil
	}
	modes, _ := params["UserModes"].(map[string]any)
	for nick, raw := range modes {
		m, _ := stringArg(raw)
		r.join(b, nick, m)
	}
	return nil
}

func (r *channelReceiver) join(b *buffer.Buffer, nick, modes string) {
	u := r.c.userByNick(r.network, nick)
	if u == nil {
		rcv := r.c.ensureUser(r.network, nick, nil)
		if rcv == nil {
			return
		}
		u = rcv.u
	}
	u.JoinChannel(r.name)
	b.AddUser(u, modes)
}

func (r *channelReceiver) Sync(slot string, params []any) error {
	b, ok := r.buffer()
	if !ok {
		return nil
	}
	switch slot {
	case "joinIrcUsers":
		if len(params) < 2 {
			return fmt.Errorf("client: joinIrcUsers expects 2 parameters, got %d", len(params))
		}
		nicks, modes := stringList(params[0]), stringList(params[1])
		for i, nick := range nicks {
			m := ""
			if i < len(modes) {
				m = modes[i]
			}
			r.join(b, nick, m)
		}
	case "part":
		if nick, ok := stringArg(firstParam(params)); ok {
			b.RemoveUser(nick)
			if u := r.c.userByNick(r.network, nick); u != nil {
				u.PartChannel(r.name)
			}
		}
	case "addUserMode", "removeUserMode":
		if len(params) < 2 {
			return fmt.Errorf("client: %s expects 2 parameters, got %d", slot, len(params))
		}
		nick, _ := stringArg(params[0])
		mode, _ := stringArg(params[1])
		if slot == "addUserMode" {
			b.AddUserMode(nick, mode)
		} else {
			b.RemoveUserMode(nick, mode)
		}
	default:
		r.c.log.Debugf("client.IrcChannel ignored slot=%s channel=%s", slot, r.name)
	}
	return nil
}

// backlogReceiver stores history answered by the BacklogManager.
type backlogReceiver struct {
	c *Conn
}

func (backlogReceiver) InitData(map[string]any) error { return nil }

func (r backlogReceiver) Sync(slot string, params []any) error {
	if slot != "receiveBacklog" || len(params) == 0 {
		return nil
	}
	for _, raw := range asList(params[len(params)-1]) {
		m, ok := raw.(qtds.Message)
		if !ok {
			continue
		}
		b := r.c.bufferFor(m.Buffer)
		if m2 := b.AddWireMessage(m); m2 != nil && r.c.opts.BacklogLimit > 0 {
			b.TrimMessages(r.c.opts.BacklogLimit)
		}
	}
	return nil
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// bufferFor returns the buffer described by info, adding it when unknown.
func (c *Conn) bufferFor(info qtds.BufferInfo) *buffer.Buffer {
	if b, ok := c.Buffers.Buffer(int(info.ID)); ok {
		return b
	}
	b := buffer.FromInfo(buffer.InfoFromWire(info))
	c.Buffers.AddBuffer(b)
	return b
}

func (c *Conn) displayMsg(params []any) error {
	if len(params) != 1 {
		return fmt.Errorf("client: displayMsg expects 1 parameter, got %d", len(params))
	}
	m, ok := params[0].(qtds.Message)
	if !ok {
		return fmt.Errorf("client: displayMsg parameter %T", params[0])
	}
	b := c.bufferFor(m.Buffer)
	stored := b.AddWireMessage(m)
	if stored == nil {
		return nil
	}
	if c.opts.BacklogLimit > 0 {
		b.TrimMessages(c.opts.BacklogLimit)
	}
	if c.opts.OnMessage != nil {
		c.opts.OnMessage(b, stored)
	}
	return nil
}

func (c *Conn) bufferInfoUpdated(params []any) error {
	if len(params) != 1 {
		return fmt.Errorf("client: bufferInfoUpdated expects 1 parameter, got %d", len(params))
	}
	wire, ok := params[0].(qtds.BufferInfo)
	if !ok {
		return fmt.Errorf("client: bufferInfoUpdated parameter %T", params[0])
	}
	info := buffer.InfoFromWire(wire)
	b, ok := c.Buffers.Buffer(info.ID)
	if !ok {
		c.Buffers.AddBuffer(buffer.FromInfo(info))
		return nil
	}
	b.SetName(info.Name)
	b.Group = info.Group
	b.Type = info.Type
	return nil
}

// objectRenamed follows server-side renames: (class, newName, oldName).
func (c *Conn) objectRenamed(params []any) error {
	if len(params) != 3 {
		return fmt.Errorf("client: __objectRenamed__ expects 3 parameters, got %d", len(params))
	}
	class, _ := stringArg(params[0])
	newName, _ := stringArg(params[1])
	oldName, _ := stringArg(params[2])
	if !c.Router.Rename(class, newName, oldName) {
		c.log.Debugf("client.objectRenamed unknown class=%s old=%s", class, oldName)
	}
	if class == "IrcUser" {
		if u, ok := c.Users[oldName]; ok {
			delete(c.Users, oldName)
			c.Users[newName] = u
		}
	}
	return nil
}

func (c *Conn) identityCreated(params []any) error {
	if len(params) != 1 {
		return fmt.Errorf("client: identityCreated expects 1 parameter, got %d", len(params))
	}
	var fields map[string]any
	switch v := params[0].(type) {
	case qtds.UserMap:
		fields = v.Fields
	case map[string]any:
		fields = v
	default:
		return fmt.Errorf("client: identityCreated parameter %T", params[0])
	}
	id, err := identity.New(fields)
	if err != nil {
		return err
	}
	c.addIdentity(id)
	return nil
}

func (c *Conn) identityRemoved(params []any) error {
	if len(params) != 1 {
		return fmt.Errorf("client: identityRemoved expects 1 parameter, got %d", len(params))
	}
	id, ok := params[0].(qtds.IdentityID)
	if !ok {
		return fmt.Errorf("client: identityRemoved parameter %T", params[0])
	}
	delete(c.Identities, int(id))
	c.Router.Unregister("Identity", strconv.Itoa(int(id)))
	return nil
}

func (c *Conn) networkCreated(params []any) error {
	if len(params) != 1 {
		return fmt.Errorf("client: networkCreated expects 1 parameter, got %d", len(params))
	}
	id, ok := params[0].(qtds.NetworkID)
	if !ok {
		return fmt.Errorf("client: networkCreated parameter %T", params[0])
	}
	c.addNetwork(int(id))
	return c.requestInit("Network", strconv.Itoa(int(id)))
}

func (c *Conn) networkRemoved(params []any) error {
	if len(params) != 1 {
		return fmt.Errorf("client: networkRemoved expects 1 parameter, got %d", len(params))
	}
	id, ok := params[0].(qtds.NetworkID)
	if !ok {
		return fmt.Errorf("client: networkRemoved parameter %T", params[0])
	}
	delete(c.Networks, int(id))
	c.Router.Unregister("Network", strconv.Itoa(int(id)))
	for _, b := range c.Buffers.All() {
		if b.Network == int(id) {
			c.Buffers.RemoveBuffer(b.ID)
		}
	}
	return nil
}
