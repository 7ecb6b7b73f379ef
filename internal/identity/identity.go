// Package identity holds the client persona configuration synced as the
// Identity object: nicknames, away and quit texts.
package identity

import (
	"fmt"

	"github.com/danmuck/libquassel/internal/ingest"
	logs "github.com/danmuck/libquassel/internal/logging"
)

type Identity struct {
	ingest.Extra `qt:"-"`

	ID                      int      `qt:"identityId"`
	Name                    string   `qt:"identityName"`
	RealName                string   `qt:"realName"`
	Nicks                   []string `qt:"nicks"`
	AwayNick                string   `qt:"awayNick"`
	AwayNickEnabled         bool     `qt:"awayNickEnabled"`
	AwayReason              string   `qt:"awayReason"`
	AwayReasonEnabled       bool     `qt:"awayReasonEnabled"`
	AutoAwayEnabled         bool     `qt:"autoAwayEnabled"`
	AutoAwayTime            int      `qt:"autoAwayTime"`
	AutoAwayReason          string   `qt:"autoAwayReason"`
	AutoAwayReasonEnabled   bool     `qt:"autoAwayReasonEnabled"`
	DetachAwayEnabled       bool     `qt:"detachAwayEnabled"`
	DetachAwayReason        string   `qt:"detachAwayReason"`
	DetachAwayReasonEnabled bool     `qt:"detachAwayReasonEnabled"`
	Ident                   string   `qt:"ident"`
	KickReason              string   `qt:"kickReason"`
	PartReason              string   `qt:"partReason"`
	QuitReason              string   `qt:"quitReason"`
}

// New builds an identity from an attribute map, typically the Identity
// user type carried in SessionInit.
func New(data map[string]any) (*Identity, error) {
	id := &Identity{}
	if err := id.Update(data); err != nil {
		return nil, err
	}
	return id, nil
}

func (i *Identity) SetID(id int) {
	i.ID = id
}

// Update applies an attribute map; fields not present are left unchanged.
func (i *Identity) Update(data map[string]any) error {
	if err := ingest.Devour(i, data); err != nil {
		logs.Warnf("identity.Update id=%d err=%v", i.ID, err)
		return err
	}
	return nil
}

// Nick returns the preferred nickname, or "" when none is configured.
func (i *Identity) Nick() string {
	if len(i.Nicks) == 0 {
		return ""
	}
	return i.Nicks[0]
}

// ToMap renders the identity back into its attribute form.
func (i *Identity) ToMap() (map[string]any, error) {
	return ingest.Snapshot(i)
}

// InitData applies the snapshot delivered for the Identity object.
func (i *Identity) InitData(params map[string]any) error {
	return i.Update(params)
}

// Sync handles setX slots and the bulk update slot.
func (i *Identity) Sync(slot string, params []any) error {
	if slot == "update" {
		if len(params) != 1 {
			return fmt.Errorf("identity: update expects 1 parameter, got %d", len(params))
		}
		m, ok := params[0].(map[string]any)
		if !ok {
			return fmt.Errorf("identity: update expects a map, got %T", params[0])
		}
		return i.Update(m)
	}
	handled, err := ingest.ApplySetter(i, slot, params)
	if err != nil {
		return err
	}
	if !handled {
		logs.Debugf("identity.Sync id=%d ignored slot=%s", i.ID, slot)
	}
	return nil
}
