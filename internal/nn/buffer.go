package nn

import (
	"fmt"
	"math/rand"
)

// Buffer owns a fixed-length run of float64 values. Copies made with Clone
// never alias the source.
type Buffer struct {
	values []float64
}

func NewBuffer(n int) Buffer {
	if n < 0 {
		panic(fmt.Sprintf("nn: negative buffer length %d", n))
	}
	return Buffer{values: make([]float64, n)}
}

// BufferOf copies values into a new buffer.
func BufferOf(values ...float64) Buffer {
	out := NewBuffer(len(values))
	copy(out.values, values)
	return out
}

// RandomBuffer draws every value independently from U[-1, 1].
func RandomBuffer(n int, rng *rand.Rand) Buffer {
	out := NewBuffer(n)
	for i := range out.values {
		out.values[i] = rng.Float64()*2 - 1
	}
	return out
}

func (b Buffer) Len() int {
	return len(b.values)
}

func (b Buffer) At(i int) float64 {
	return b.values[i]
}

func (b Buffer) Set(i int, v float64) {
	b.values[i] = v
}

func (b Buffer) Add(i int, delta float64) {
	b.values[i] += delta
}

func (b Buffer) Clone() Buffer {
	return BufferOf(b.values...)
}

// Values returns a copy of the underlying values.
func (b Buffer) Values() []float64 {
	return append([]float64(nil), b.values...)
}

func (b Buffer) Equal(other Buffer) bool {
	if len(b.values) != len(other.values) {
		return false
	}
	for i, v := range b.values {
		if other.values[i] != v {
			return false
		}
	}
	return true
}
