package sse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramerSingleChunk(t *testing.T) {
	f := &Framer{}
	frames := f.Push([]byte("event: new_order\ndata: {\"order\":{\"id\":\"A\"}}\n\n"))
	require.Len(t, frames, 1)
	require.Equal(t, "new_order", frames[0].Event)
	require.Equal(t, `{"order":{"id":"A"}}`, frames[0].Data)
}

func TestFramerEverySplitOffset(t *testing.T) {
	raw := "event: new_order\ndata: {\"order\":{\"id\":\"A\"}}\n\n"
	for i := 0; i <= len(raw); i++ {
		f := &Framer{}
		frames := f.Push([]byte(raw[:i]))
		frames = append(frames, f.Push([]byte(raw[i:]))...)
		require.Len(t, frames, 1, "split at offset %d", i)
		require.Equal(t, "new_order", frames[0].Event, "split at offset %d", i)
		require.Equal(t, `{"order":{"id":"A"}}`, frames[0].Data, "split at offset %d", i)
	}
}

func TestFramerMultipleFramesOneChunk(t *testing.T) {
	f := &Framer{}
	frames := f.Push([]byte("event: a\ndata: 1\n\nevent: b\ndata: 2\n\nevent: c\n"))
	require.Len(t, frames, 2)
	require.Equal(t, "a", frames[0].Event)
	require.Equal(t, "b", frames[1].Event)

	// The partial third frame completes on the next chunk.
	frames = f.Push([]byte("data: 3\n\n"))
	require.Len(t, frames, 1)
	require.Equal(t, "c", frames[0].Event)
	require.Equal(t, "3", frames[0].Data)
}

func TestFramerIgnoresUnrecognizedLines(t *testing.T) {
	f := &Framer{}
	frames := f.Push([]byte(": comment\nid: 42\nevent: order_updated\nretry: 1000\ndata: {}\n\n"))
	require.Len(t, frames, 1)
	require.Equal(t, "order_updated", frames[0].Event)
	require.Equal(t, "{}", frames[0].Data)
}

func TestFramerSkipsBlankFrames(t *testing.T) {
	f := &Framer{}
	frames := f.Push([]byte("\n\n\n\nevent: heartbeat\n\n"))
	require.Len(t, frames, 1)
	require.Equal(t, "heartbeat", frames[0].Event)
}
