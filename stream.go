package miktos

import (
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
)

// streamBufferSize is the largest chunk a single read can deliver.
const streamBufferSize = 32 << 10

// TextStream is the body of a streaming generation, delivered as opaque
// text chunks.
//
// No framing is assumed: a chunk is whatever a single read from the
// transport returned. Concatenating all chunks reproduces the response body
// byte for byte. A TextStream can be iterated once.
type TextStream struct {
	body     io.ReadCloser
	consumed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

func newTextStream(body io.ReadCloser) *TextStream {
	return &TextStream{body: body}
}

// Chunks returns an iterator over the chunks of the stream, in arrival
// order. The iterator yields (chunk, nil) for each chunk and ("", err) once
// if reading fails. It ends at end of stream and closes the body when
// iteration stops.
//
// Calling Chunks a second time returns an iterator that only yields
// ErrStreamConsumed.
func (s *TextStream) Chunks() iter.Seq2[string, error] {
	if !s.consumed.CompareAndSwap(false, true) {
		return func(yield func(string, error) bool) {
			yield("", ErrStreamConsumed)
		}
	}

	return func(yield func(string, error) bool) {
		defer s.Close()

		buf := make([]byte, streamBufferSize)
		for {
			n, err := s.body.Read(buf)
			if n > 0 {
				streamChunksTotal.Inc()
				if !yield(string(buf[:n]), nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}

// Text drains the stream and returns the concatenated chunks.
func (s *TextStream) Text() (string, error) {
	var sb strings.Builder
	for chunk, err := range s.Chunks() {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

// Close closes the underlying response body. It is safe to call more than once.
func (s *TextStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
