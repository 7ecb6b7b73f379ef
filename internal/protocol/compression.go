package protocol

import (
	"compress/zlib"
	"io"
)

// lazyInflater defers reading the zlib header until the first read, which
// happens on the read goroutine rather than in the constructor.
type lazyInflater struct {
	src io.Reader
	zr  io.ReadCloser
}

func (l *lazyInflater) Read(p []byte) (int, error) {
	if l.zr == nil {
		zr, err := zlib.NewReader(l.src)
		if err != nil {
			return 0, err
		}
		l.zr = zr
	}
	return l.zr.Read(p)
}
