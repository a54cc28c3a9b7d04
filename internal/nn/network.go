package nn

import (
	"fmt"
	"math/rand"
)

// Network is a dense feed-forward network with a fixed Format. Weights are
// read-only for the lifetime of the network; offspring get a cloned buffer.
type Network struct {
	format   Format
	weights  Buffer
	response float64
}

// NewNetwork takes ownership of weights. It panics when the buffer length
// does not match the format or the activation response is not positive.
func NewNetwork(format Format, weights Buffer, response float64) *Network {
	if weights.Len() != format.WeightCount() {
		panic(fmt.Sprintf("nn: weight count %d does not match format %s (want %d)", weights.Len(), format, format.WeightCount()))
	}
	if !(response > 0) {
		panic(fmt.Sprintf("nn: activation response must be > 0, got %v", response))
	}
	return &Network{format: format, weights: weights, response: response}
}

// NewRandomNetwork initializes every weight from U[-1, 1] using rng.
func NewRandomNetwork(format Format, response float64, rng *rand.Rand) *Network {
	return NewNetwork(format, RandomBuffer(format.WeightCount(), rng), response)
}

func (n *Network) Format() Format {
	return n.format
}

func (n *Network) Response() float64 {
	return n.response
}

// Weights returns an independent copy of the weight buffer.
func (n *Network) Weights() Buffer {
	return n.weights.Clone()
}

// Scratch holds the I/O and hidden buffers of one forward pass so an episode
// can run many passes without allocating.
type Scratch struct {
	format Format
	In     []float64
	Out    []float64
	first  []float64
	second []float64
}

func NewScratch(format Format) *Scratch {
	s := &Scratch{
		format: format,
		In:     make([]float64, format.Inputs),
		Out:    make([]float64, format.Outputs),
	}
	if format.Layers > 0 {
		s.first = make([]float64, format.Hidden)
	}
	if format.Layers > 1 {
		s.second = make([]float64, format.Hidden)
	}
	return s
}

func (n *Network) NewScratch() *Scratch {
	return NewScratch(n.format)
}

// Process runs one forward pass over s.In and returns s.Out.
func (n *Network) Process(s *Scratch) []float64 {
	if s.format != n.format {
		panic(fmt.Sprintf("nn: scratch format %s does not match network format %s", s.format, n.format))
	}
	n.run(s.In, s.Out, s.first, s.second)
	return s.Out
}

// Forward is the allocating convenience form of Process.
func (n *Network) Forward(in []float64) []float64 {
	s := n.NewScratch()
	if len(in) != len(s.In) {
		panic(fmt.Sprintf("nn: input length %d does not match format inputs %d", len(in), n.format.Inputs))
	}
	copy(s.In, in)
	out := n.Process(s)
	return append([]float64(nil), out...)
}

func (n *Network) run(in, out, first, second []float64) {
	f := n.format
	if len(in) != f.Inputs {
		panic(fmt.Sprintf("nn: input length %d does not match format inputs %d", len(in), f.Inputs))
	}
	if len(out) != f.Outputs {
		panic(fmt.Sprintf("nn: output length %d does not match format outputs %d", len(out), f.Outputs))
	}
	if f.Layers > 0 && len(first) != f.Hidden {
		panic(fmt.Sprintf("nn: hidden buffer length %d does not match hidden width %d", len(first), f.Hidden))
	}
	if f.Layers > 1 && len(second) != f.Hidden {
		panic(fmt.Sprintf("nn: second hidden buffer length %d does not match hidden width %d", len(second), f.Hidden))
	}

	w := n.weights.values
	pos := 0
	if f.Layers == 0 {
		pos = n.layer(in, out, w, pos)
	} else {
		pos = n.layer(in, first, w, pos)
		from, to := first, second
		for i := 1; i < f.Layers; i++ {
			pos = n.layer(from, to, w, pos)
			from, to = to, from
		}
		pos = n.layer(from, out, w, pos)
	}

	if pos != len(w) {
		panic(fmt.Sprintf("nn: forward pass consumed %d of %d weights", pos, len(w)))
	}
}

// layer computes out[o] = sigmoid(sum_i w*in[i]) reading weights from pos
// onward and returns the next unread position.
func (n *Network) layer(in, out, w []float64, pos int) int {
	for o := range out {
		if pos+len(in) > len(w) {
			panic(fmt.Sprintf("nn: weight buffer exhausted at %d of %d", pos, len(w)))
		}
		sum := 0.0
		for _, v := range in {
			sum += w[pos] * v
			pos++
		}
		out[o] = Sigmoid(sum, n.response)
	}
	return pos
}
