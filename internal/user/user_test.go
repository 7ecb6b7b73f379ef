package user

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/danmuck/libquassel/internal/testutil/testlog"
)

func TestNewDerivesNickFromMask(t *testing.T) {
	testlog.Start(t)
	u, err := New("alice!~al@example.org", map[string]any{
		"realName": []byte("Alice A."),
		"away":     true,
		"host":     "example.org",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if u.Nick() != "alice" || u.ID() != "alice!~al@example.org" {
		t.Fatalf("unexpected identity nick=%q id=%q", u.Nick(), u.ID())
	}
	if u.Ident() != "~al" || u.MaskHost() != "example.org" {
		t.Fatalf("unexpected mask parts ident=%q host=%q", u.Ident(), u.MaskHost())
	}
	if u.RealName != "Alice A." || !u.Away {
		t.Fatalf("expected attributes to be ingested, got %+v", u)
	}
}

func TestNewBareNick(t *testing.T) {
	testlog.Start(t)
	u, err := New("bob", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if u.Nick() != "bob" {
		t.Fatalf("expected bob, got %q", u.Nick())
	}
	if _, err := New("  ", nil); !errors.Is(err, ErrEmptyMask) {
		t.Fatalf("expected ErrEmptyMask, got %v", err)
	}
}

func TestUpdateKeepsIDAndExtra(t *testing.T) {
	testlog.Start(t)
	u, _ := New("carol!c@h", nil)
	login := time.Unix(1700000000, 0).UTC()
	if err := u.Update(map[string]any{"loginTime": login, "nick": "mallory", "futureKey": 1}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Nick() != "carol" {
		t.Fatalf("ingest must not touch the mask, got %q", u.Nick())
	}
	if !u.LoginTime.Equal(login) {
		t.Fatalf("expected login time, got %v", u.LoginTime)
	}
	if _, ok := u.Attr("futureKey"); !ok {
		t.Fatalf("expected unknown key to be retained")
	}
}

func TestRenamedKeepsOriginalMask(t *testing.T) {
	testlog.Start(t)
	u, _ := New("dave!d@host", map[string]any{"realName": "Dave", "futureKey": 1})
	u.JoinChannel("#go")

	next, err := u.Renamed("dave_")
	if err != nil {
		t.Fatalf("renamed: %v", err)
	}
	if u.ID() != "dave!d@host" || u.Nick() != "dave" {
		t.Fatalf("expected original mask kept, got %q", u.ID())
	}
	if next.ID() != "dave_!d@host" || next.Nick() != "dave_" {
		t.Fatalf("unexpected renamed mask %q", next.ID())
	}
	if next.RealName != "Dave" || !slices.Equal(next.Channels, []string{"#go"}) {
		t.Fatalf("expected attributes carried over, got %+v", next)
	}
	if _, ok := next.Attr("futureKey"); !ok {
		t.Fatalf("expected extra attributes carried over")
	}
	next.JoinChannel("#rust")
	if len(u.Channels) != 1 {
		t.Fatalf("expected channel lists to be independent, got %v", u.Channels)
	}
	if _, err := u.Renamed(""); err == nil {
		t.Fatalf("expected empty rename to fail")
	}

	handled, err := u.Sync("setNick", []any{"dave__"})
	if handled || err != nil || u.ID() != "dave!d@host" {
		t.Fatalf("expected setNick to leave the mask alone handled=%v err=%v id=%q", handled, err, u.ID())
	}
}

func TestSyncSlots(t *testing.T) {
	testlog.Start(t)
	u, _ := New("erin!e@h", nil)
	steps := []struct {
		slot   string
		params []any
	}{
		{"setAway", []any{true}},
		{"setAwayMessage", []any{[]byte("lunch")}},
		{"joinChannel", []any{"#go"}},
		{"joinChannel", []any{"#GO"}},
		{"joinChannel", []any{"#rust"}},
		{"partChannel", []any{"#rust"}},
		{"addUserModes", []any{"iw"}},
		{"addUserModes", []any{"ix"}},
		{"removeUserModes", []any{"w"}},
	}
	for _, step := range steps {
		handled, err := u.Sync(step.slot, step.params)
		if !handled || err != nil {
			t.Fatalf("%s: handled=%v err=%v", step.slot, handled, err)
		}
	}
	if !u.Away || u.AwayMessage != "lunch" {
		t.Fatalf("unexpected away state %v %q", u.Away, u.AwayMessage)
	}
	if len(u.Channels) != 1 || u.Channels[0] != "#go" {
		t.Fatalf("unexpected channels %v", u.Channels)
	}
	if u.UserModes != "ix" {
		t.Fatalf("unexpected modes %q", u.UserModes)
	}
	for _, slot := range []string{"quit", "setNick"} {
		if handled, _ := u.Sync(slot, []any{"erin2"}); handled {
			t.Fatalf("expected %s to be left to the caller", slot)
		}
	}
	if u.Nick() != "erin" {
		t.Fatalf("expected nick unchanged, got %q", u.Nick())
	}
}

func TestNilUserIsInert(t *testing.T) {
	var u *User
	if u.Nick() != "" || u.ID() != "" || u.Source() != nil {
		t.Fatalf("expected zero values from nil user")
	}
	u.JoinChannel("#x")
	if err := u.Update(map[string]any{"away": true}); err != nil {
		t.Fatalf("expected nil update to be ignored, got %v", err)
	}
}
