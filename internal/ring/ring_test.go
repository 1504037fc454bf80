package ring

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEmptyBuffer(t *testing.T) {
	b := New(make([]byte, 8))

	assert.True(t, b.Empty())
	assert.False(t, b.Full())
	assert.Equal(t, 0, b.Size())
	assert.Equal(t, 7, b.Space())
	assert.Equal(t, 8, b.Capacity())
	assert.Empty(t, b.Read())
}

func TestFillAndDrain(t *testing.T) {
	b := New(make([]byte, 8))

	w := b.Write()
	require.Equal(t, 7, len(w))
	copy(w, "abcdefg")
	b.Append(7)

	assert.True(t, b.Full())
	assert.Equal(t, 0, b.Space())
	assert.Equal(t, 7, b.Size())

	r := b.Read()
	assert.Equal(t, "abcdefg", string(r))
	b.Consume(7)

	assert.True(t, b.Empty())
	assert.Equal(t, 7, b.Space())
}

func TestWrapAround(t *testing.T) {
	b := New(make([]byte, 8))

	// Advance head so the free region wraps.
	copy(b.Write(), "abcde")
	b.Append(5)
	b.Consume(5)

	// Write window stops at the physical end first.
	w := b.Write()
	assert.Equal(t, 3, len(w))
	copy(w, "fgh")
	b.Append(3)

	// A second window continues at the start.
	w = b.Write()
	assert.Equal(t, 4, len(w))
	copy(w, "ijkl")
	b.Append(4)

	assert.Equal(t, 7, b.Size())
	assert.True(t, b.Full())

	// Reading drains both segments in order.
	var got []byte
	for !b.Empty() {
		r := b.Read()
		got = append(got, r...)
		b.Consume(len(r))
	}
	assert.Equal(t, "fghijkl", string(got))
}

func TestClear(t *testing.T) {
	b := New(make([]byte, 8))
	copy(b.Write(), "abc")
	b.Append(3)

	b.Clear()
	assert.True(t, b.Empty())
	assert.Equal(t, 7, b.Space())
	assert.Empty(t, b.Read())
}

func TestAppendBeyondWindowPanics(t *testing.T) {
	b := New(make([]byte, 8))
	assert.Panics(t, func() { b.Append(8) })
}

func TestConsumeBeyondWindowPanics(t *testing.T) {
	b := New(make([]byte, 8))
	copy(b.Write(), "ab")
	b.Append(2)
	assert.Panics(t, func() { b.Consume(3) })
}

// TestConservation checks, for random interleavings of partial writes and
// reads, that Size()+Space() == Capacity()-1 after every operation and that
// bytes come out in the exact order they went in.
func TestConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(2, 64).Draw(rt, "capacity")
		b := New(make([]byte, capacity))

		var model bytes.Buffer // reference FIFO
		var seq byte

		steps := rapid.IntRange(1, 200).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "write") {
				w := b.Write()
				if len(w) == 0 {
					continue
				}
				n := rapid.IntRange(0, len(w)).Draw(rt, "n")
				for j := 0; j < n; j++ {
					w[j] = seq
					model.WriteByte(seq)
					seq++
				}
				b.Append(n)
			} else {
				r := b.Read()
				if len(r) == 0 {
					continue
				}
				n := rapid.IntRange(0, len(r)).Draw(rt, "n")
				expect := model.Next(n)
				require.Equal(rt, expect, r[:n])
				b.Consume(n)
			}

			require.Equal(rt, capacity-1, b.Size()+b.Space())
			require.Equal(rt, model.Len(), b.Size())
			require.Equal(rt, b.Size() == 0, b.Empty())
			require.Equal(rt, b.Space() == 0, b.Full())
		}
	})
}
