package evo

import (
	"chartevo/internal/nn"
	"chartevo/internal/scape"
)

// Individual pairs one immutable network with the fitness of its latest
// episode.
type Individual struct {
	id      string
	network *nn.Network
	fitness float64
	trace   scape.Trace
}

func NewIndividual(id string, network *nn.Network) *Individual {
	if network == nil {
		panic("evo: individual requires a network")
	}
	return &Individual{id: id, network: network}
}

func (ind *Individual) ID() string           { return ind.id }
func (ind *Individual) Network() *nn.Network { return ind.network }
func (ind *Individual) Fitness() float64     { return ind.fitness }
func (ind *Individual) Trace() scape.Trace   { return ind.trace }
