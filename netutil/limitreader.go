// Package netutil provides transport plumbing for fetching kick bundles:
// size-limited reads, retrying round trips, and URL hygiene.
package netutil

import (
	"errors"
	"fmt"
	"io"
)

// SizeLimitError is returned when a read exceeds its byte limit.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("size limit of %d bytes exceeded", e.Limit)
}

// IsSizeLimitError reports whether err is (or wraps) a SizeLimitError.
func IsSizeLimitError(err error) bool {
	var sle *SizeLimitError
	return errors.As(err, &sle)
}

// LimitedReader reads at most limit bytes from the underlying reader and
// fails with SizeLimitError if more data is available.
type LimitedReader struct {
	r         io.Reader
	remaining int64
	limit     int64
}

// NewLimitedReader wraps r with a byte limit.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{r: r, remaining: limit, limit: limit}
}

// Read implements io.Reader. A read past the limit returns SizeLimitError
// rather than truncating silently.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Probe for more data; EOF exactly at the limit is fine.
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, &SizeLimitError{Limit: l.limit}
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}

// ReadAllLimited reads r to EOF, failing with SizeLimitError if the content
// exceeds limit bytes.
func ReadAllLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(NewLimitedReader(r, limit))
}
