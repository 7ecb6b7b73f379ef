package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stderr).Level(zerolog.InfoLevel)
)

// Logger returns the current process logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Tracef(format string, args ...any) { log(zerolog.TraceLevel, format, args...) }
func Debugf(format string, args ...any) { log(zerolog.DebugLevel, format, args...) }
func Infof(format string, args ...any)  { log(zerolog.InfoLevel, format, args...) }
func Warnf(format string, args ...any)  { log(zerolog.WarnLevel, format, args...) }
func Errf(format string, args ...any)   { log(zerolog.ErrorLevel, format, args...) }

// Logf writes an unleveled line; it is shown at every level except Disabled.
func Logf(format string, args ...any) {
	l := Logger()
	l.Log().Msgf(format, args...)
}

func log(level zerolog.Level, format string, args ...any) {
	l := Logger()
	l.WithLevel(level).Msgf(format, args...)
}

// Scope is a child logger carrying fixed fields, e.g. one per core connection.
type Scope struct {
	l zerolog.Logger
}

// With returns a Scope tagged with key=value on top of the process logger.
func With(key, value string) Scope {
	return Scope{l: Logger().With().Str(key, value).Logger()}
}

func (s Scope) Debugf(format string, args ...any) { s.l.Debug().Msgf(format, args...) }
func (s Scope) Infof(format string, args ...any)  { s.l.Info().Msgf(format, args...) }
func (s Scope) Warnf(format string, args ...any)  { s.l.Warn().Msgf(format, args...) }
func (s Scope) Errf(format string, args ...any)   { s.l.Error().Msgf(format, args...) }

// Set installs l as the process logger.
func Set(l zerolog.Logger) {
	mu.Lock()
	base = l
	mu.Unlock()
}
