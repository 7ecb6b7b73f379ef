package testlog

import (
	"bytes"
	"sync"
	"testing"

	logs "github.com/danmuck/libquassel/internal/logging"
	"github.com/rs/zerolog"
)

func Start(t *testing.T) {
	t.Helper()
	logs.ConfigureTests()
	logs.Infof("test=%s", t.Name())
}

// Sink collects JSON log lines written during a test.
type Sink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *Sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Capture redirects the process logger into a Sink until the test ends.
func Capture(t *testing.T) *Sink {
	t.Helper()
	Start(t)
	prev := logs.Logger()
	sink := &Sink{}
	logs.Apply(logs.Config{Level: zerolog.DebugLevel, JSON: true, Out: sink})
	t.Cleanup(func() { logs.Set(prev) })
	return sink
}
