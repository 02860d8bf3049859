package sse

import (
	"bytes"
	"strings"
)

var frameDelimiter = []byte("\n\n")

// Frame is one server-sent event as framed on the wire.
type Frame struct {
	Event string
	Data  string
}

// Framer splits a raw SSE byte stream into frames. Chunks may cut a frame
// (or the delimiter itself) anywhere; the trailing partial frame stays
// buffered until the next delimiter arrives.
type Framer struct {
	buf []byte
}

// Push consumes the next transport chunk and returns the frames it
// completed, in stream order.
func (f *Framer) Push(chunk []byte) []Frame {
	f.buf = append(f.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.Index(f.buf, frameDelimiter)
		if i < 0 {
			return frames
		}
		raw := string(f.buf[:i])
		f.buf = f.buf[i+len(frameDelimiter):]
		if strings.TrimSpace(raw) == "" {
			continue
		}
		frames = append(frames, parseFrame(raw))
	}
}

// parseFrame extracts the event and data fields. Lines that are neither are
// part of the protocol we don't consume (ids, comments) and are ignored.
func parseFrame(raw string) Frame {
	var fr Frame
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			fr.Event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			fr.Data = strings.TrimSpace(line[len("data:"):])
		}
	}
	return fr
}
