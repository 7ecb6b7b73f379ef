package client

import (
	"maps"
	"strings"

	"github.com/danmuck/libquassel/internal/ingest"
)

// Network is the subset of the synced Network object the model tracks.
type Network struct {
	ingest.Extra `qt:"-"`

	ID              int    `qt:"-"`
	NetworkName     string `qt:"networkName"`
	CurrentServer   string `qt:"currentServer"`
	MyNick          string `qt:"myNick"`
	IsConnected     bool   `qt:"isConnected"`
	ConnectionState int    `qt:"connectionState"`
	IdentityID      int    `qt:"identityId"`
	Latency         int    `qt:"latency"`
	CodecForServer  string `qt:"codecForServer"`
}

// networkReceiver applies the Network object and seeds users and channel
// rosters from its IrcUsersAndChannels snapshot.
type networkReceiver struct {
	c *Conn
	n *Network
}

func (r networkReceiver) InitData(params map[string]any) error {
	attrs := maps.Clone(params)
	delete(attrs, "IrcUsersAndChannels")
	if err := ingest.Devour(r.n, attrs); err != nil {
		return err
	}
	if uc, ok := params["IrcUsersAndChannels"].(map[string]any); ok {
		r.seed(uc)
	}
	return nil
}

// seed reads the keyed snapshot form: users by mask, channels by name with
// a UserModes map of nick to modes.
func (r networkReceiver) seed(uc map[string]any) {
	users, _ := uc["users"].(map[string]any)
	for mask, raw := range users {
		attrs, _ := raw.(map[string]any)
		r.c.ensureUser(r.n.ID, mask, attrs)
	}
	channels, _ := uc["channels"].(map[string]any)
	for name, raw := range channels {
		attrs, _ := raw.(map[string]any)
		ch := &channelReceiver{c: r.c, network: r.n.ID, name: name}
		r.c.Router.Register("IrcChannel", ch.objectName(), ch)
		if err := ch.InitData(attrs); err != nil {
			r.c.log.Warnf("client.network seed channel=%s err=%v", name, err)
		}
	}
}

func (r networkReceiver) Sync(slot string, params []any) error {
	switch slot {
	case "addIrcUser":
		if len(params) == 1 {
			if mask, ok := stringArg(params[0]); ok {
				r.c.ensureUser(r.n.ID, mask, nil)
			}
		}
		return nil
	case "addIrcChannel":
		return nil
	}
	_, err := ingest.ApplySetter(r.n, slot, params)
	return err
}

func stringArg(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := stringArg(e); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func splitObjectName(name string) (network, rest string, ok bool) {
	return strings.Cut(name, "/")
}
