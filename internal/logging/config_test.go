package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"trace":   zerolog.TraceLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) got=%v ok=%v want=%v", raw, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
	if _, ok := ParseLevel(""); ok {
		t.Fatalf("expected empty level to be rejected")
	}
}

func TestApplyJSONRespectsLevel(t *testing.T) {
	prev := Logger()
	defer Set(prev)

	var buf bytes.Buffer
	Apply(Config{Level: zerolog.WarnLevel, JSON: true, Out: &buf})

	Infof("hidden id=%d", 1)
	Warnf("shown id=%d", 2)
	With("conn", "c-1").Errf("scoped id=%d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown id=2") {
		t.Fatalf("missing warn line: %s", out)
	}
	if !strings.Contains(out, `"conn":"c-1"`) {
		t.Fatalf("missing scoped field: %s", out)
	}
}
