package scape

import (
	"context"

	"chartevo/internal/nn"
)

type Fitness float64

type Trace map[string]any

type Agent interface {
	ID() string
}

// NetworkAgent is an agent driven by a fixed feed-forward network.
type NetworkAgent interface {
	Agent
	Network() *nn.Network
}

// Scape evaluates one agent over one episode. The seed picks the episode's
// environment so runs can be replayed.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, agent Agent, seed int64) (Fitness, Trace, error)
}
