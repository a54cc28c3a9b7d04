package nn

import "fmt"

// Format describes a fixed feed-forward topology. It is immutable once built.
type Format struct {
	Inputs  int `json:"inputs"`
	Outputs int `json:"outputs"`
	Hidden  int `json:"hidden"`
	Layers  int `json:"layers"`
}

// NewFormat panics on negative dimensions.
func NewFormat(inputs, outputs, hidden, layers int) Format {
	if inputs < 0 || outputs < 0 || hidden < 0 || layers < 0 {
		panic(fmt.Sprintf("nn: negative format dimension in=%d out=%d hidden=%d layers=%d", inputs, outputs, hidden, layers))
	}
	return Format{Inputs: inputs, Outputs: outputs, Hidden: hidden, Layers: layers}
}

// WeightCount is the exact number of weights one forward pass consumes.
func (f Format) WeightCount() int {
	if f.Layers == 0 {
		return f.Inputs * f.Outputs
	}
	count := f.Inputs * f.Hidden
	count += f.Hidden * f.Hidden * (f.Layers - 1)
	count += f.Hidden * f.Outputs
	return count
}

// Validate rejects formats that cannot carry a signal from input to output.
func (f Format) Validate() error {
	if f.Inputs <= 0 {
		return fmt.Errorf("input count must be > 0")
	}
	if f.Outputs <= 0 {
		return fmt.Errorf("output count must be > 0")
	}
	if f.Hidden < 0 || f.Layers < 0 {
		return fmt.Errorf("hidden width and layer count must be >= 0")
	}
	if f.Layers > 0 && f.Hidden == 0 {
		return fmt.Errorf("hidden width must be > 0 when hidden layers are present")
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%d-%dx%d-%d", f.Inputs, f.Layers, f.Hidden, f.Outputs)
}
