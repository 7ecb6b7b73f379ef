// Package user models one IRC participant seen through the core, keyed by
// its full mask (nick!user@host).
package user

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/danmuck/libquassel/internal/ingest"
	logs "github.com/danmuck/libquassel/internal/logging"
	"github.com/lrstanley/girc"
)

var ErrEmptyMask = errors.New("user: empty mask")

// User holds the synced IrcUser attributes. ID and Nick are derived from the
// mask and never ingested.
type User struct {
	ingest.Extra `qt:"-"`

	id   string
	nick string

	Away              bool      `qt:"away"`
	AwayMessage       string    `qt:"awayMessage"`
	Channels          []string  `qt:"channels"`
	Encrypted         bool      `qt:"encrypted"`
	Host              string    `qt:"host"`
	IdleTime          time.Time `qt:"idleTime"`
	IrcOperator       string    `qt:"ircOperator"`
	LastAwayMessage   int       `qt:"lastAwayMessage"`
	LoginTime         time.Time `qt:"loginTime"`
	RealName          string    `qt:"realName"`
	Server            string    `qt:"server"`
	User              string    `qt:"user"`
	UserModes         string    `qt:"userModes"`
	WhoisServiceReply string    `qt:"whoisServiceReply"`
	SuserHost         string    `qt:"suserHost"`
	Account           string    `qt:"account"`
}

// New creates a user from its mask and an optional attribute snapshot.
func New(mask string, data map[string]any) (*User, error) {
	mask = strings.TrimSpace(mask)
	if mask == "" {
		return nil, ErrEmptyMask
	}
	u := &User{id: mask, nick: nickOf(mask)}
	if err := u.Update(data); err != nil {
		return nil, err
	}
	return u, nil
}

func nickOf(mask string) string {
	nick, _, _ := strings.Cut(mask, "!")
	return nick
}

// ID returns the full mask the user was created with.
func (u *User) ID() string {
	if u == nil {
		return ""
	}
	return u.id
}

func (u *User) Nick() string {
	if u == nil {
		return ""
	}
	return u.nick
}

// Source parses the mask into its nick, ident and host parts.
func (u *User) Source() *girc.Source {
	if u == nil {
		return nil
	}
	return girc.ParseSource(u.id)
}

// Ident is the user part of the mask, or "" when the mask carries none.
func (u *User) Ident() string {
	if src := u.Source(); src != nil {
		return src.Ident
	}
	return ""
}

// MaskHost is the host part of the mask. The synced Host attribute may be
// newer.
func (u *User) MaskHost() string {
	if src := u.Source(); src != nil {
		return src.Host
	}
	return ""
}

// Update applies an attribute map. Unknown keys are kept as extra attributes.
func (u *User) Update(data map[string]any) error {
	if u == nil {
		return nil
	}
	if err := ingest.Devour(u, data); err != nil {
		logs.Warnf("user.Update nick=%q err=%v", u.nick, err)
		return err
	}
	return nil
}

// Renamed returns a copy of u under the mask with its nick part replaced.
// The receiver keeps its mask; owners swap in the returned user.
func (u *User) Renamed(nick string) (*User, error) {
	nick = strings.TrimSpace(nick)
	if u == nil || nick == "" {
		return nil, fmt.Errorf("%w: rename to %q", ErrEmptyMask, nick)
	}
	id := nick
	if _, rest, ok := strings.Cut(u.id, "!"); ok {
		id = nick + "!" + rest
	}
	next := *u
	next.id, next.nick = id, nick
	next.Channels = slices.Clone(u.Channels)
	next.Attrs = maps.Clone(u.Attrs)
	return &next, nil
}

// JoinChannel records membership of channel; repeated joins are ignored.
func (u *User) JoinChannel(channel string) {
	if u == nil || channel == "" {
		return
	}
	if !slices.ContainsFunc(u.Channels, func(c string) bool { return strings.EqualFold(c, channel) }) {
		u.Channels = append(u.Channels, channel)
	}
}

func (u *User) PartChannel(channel string) {
	if u == nil {
		return
	}
	u.Channels = slices.DeleteFunc(u.Channels, func(c string) bool { return strings.EqualFold(c, channel) })
}

// AddUserModes merges mode letters into UserModes.
func (u *User) AddUserModes(modes string) {
	if u == nil {
		return
	}
	for _, m := range modes {
		if !strings.ContainsRune(u.UserModes, m) {
			u.UserModes += string(m)
		}
	}
}

func (u *User) RemoveUserModes(modes string) {
	if u == nil {
		return
	}
	u.UserModes = strings.Map(func(r rune) rune {
		if strings.ContainsRune(modes, r) {
			return -1
		}
		return r
	}, u.UserModes)
}

// Sync applies an IrcUser sync slot. handled is false for slots this model
// does not track.
func (u *User) Sync(slot string, params []any) (handled bool, err error) {
	if u == nil {
		return false, nil
	}
	arg := func() string {
		if len(params) == 0 {
			return ""
		}
		switch v := params[0].(type) {
		case string:
			return v
		case []byte:
			return string(v)
		default:
			return fmt.Sprint(v)
		}
	}
	switch slot {
	case "setNick":
		// The mask is fixed; owners replace the user via Renamed.
		return false, nil
	case "joinChannel":
		u.JoinChannel(arg())
		return true, nil
	case "partChannel":
		u.PartChannel(arg())
		return true, nil
	case "addUserModes":
		u.AddUserModes(arg())
		return true, nil
	case "removeUserModes":
		u.RemoveUserModes(arg())
		return true, nil
	case "update":
		if len(params) == 1 {
			if m, ok := params[0].(map[string]any); ok {
				return true, u.Update(m)
			}
		}
		return false, nil
	}
	return ingest.ApplySetter(u, slot, params)
}
