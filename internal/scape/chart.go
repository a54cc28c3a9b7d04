package scape

import (
	"context"
	"fmt"

	"chartevo/internal/chart"
	"chartevo/internal/nn"
	"chartevo/internal/trader"
)

type ChartConfig struct {
	Series         chart.SeriesParams
	Input          InputEncoding
	Actions        ActionEncoding
	Charge         trader.ChargeFunc
	InitialCapital float64
	// SettleAtEnd closes orders still open on the last tick so fitness
	// includes their result.
	SettleAtEnd bool
}

// ChartScape trades one freshly generated price series per episode.
type ChartScape struct {
	cfg ChartConfig
}

func NewChartScape(cfg ChartConfig) (*ChartScape, error) {
	if err := cfg.Series.Validate(); err != nil {
		return nil, err
	}
	if cfg.Input == nil {
		cfg.Input = EntrancesInput{}
	}
	if cfg.Actions == nil {
		cfg.Actions = PerSideActions{}
	}
	if cfg.Charge == nil {
		cfg.Charge = trader.NoCharge
	}
	return &ChartScape{cfg: cfg}, nil
}

func (*ChartScape) Name() string {
	return "chart"
}

func (s *ChartScape) Series() chart.SeriesParams { return s.cfg.Series }
func (s *ChartScape) InputWidth() int            { return s.cfg.Input.Width() }
func (s *ChartScape) OutputWidth() int           { return s.cfg.Actions.Width() }

// Encodings names the configured input and action encodings.
func (s *ChartScape) Encodings() (input, action string) {
	return s.cfg.Input.Name(), s.cfg.Actions.Name()
}

// CheckFormat reports whether a network format fits the configured encodings.
func (s *ChartScape) CheckFormat(format nn.Format) error {
	if format.Inputs != s.InputWidth() {
		return fmt.Errorf("network inputs %d do not match %s input encoding width %d", format.Inputs, s.cfg.Input.Name(), s.InputWidth())
	}
	if format.Outputs != s.OutputWidth() {
		return fmt.Errorf("network outputs %d do not match %s action encoding width %d", format.Outputs, s.cfg.Actions.Name(), s.OutputWidth())
	}
	return nil
}

func (s *ChartScape) Evaluate(ctx context.Context, agent Agent, seed int64) (Fitness, Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	driven, ok := agent.(NetworkAgent)
	if !ok {
		return 0, nil, fmt.Errorf("agent %s does not expose a network", agent.ID())
	}
	network := driven.Network()
	if err := s.CheckFormat(network.Format()); err != nil {
		return 0, nil, fmt.Errorf("agent %s: %w", agent.ID(), err)
	}

	series, err := chart.Generate(s.cfg.Series, seed)
	if err != nil {
		return 0, nil, err
	}
	fitness, trace := s.Run(network, series)
	trace["seed"] = seed
	return fitness, trace, nil
}

// Run trades series from its first to its last tick and returns the final
// capital as fitness.
func (s *ChartScape) Run(network *nn.Network, series *chart.Series) (Fitness, Trace) {
	cursor := chart.NewTickCursor(series)
	t := trader.New(cursor, s.cfg.InitialCapital, s.cfg.Charge)
	scratch := network.NewScratch()

	opened, closed := 0, 0
	for !cursor.Done() {
		s.cfg.Input.Encode(scratch.In, t)
		out := network.Process(scratch)
		o, c := s.cfg.Actions.Apply(out, t)
		opened += o
		closed += c
		cursor.Advance(1)
	}

	openAtEnd := t.Trading()
	if s.cfg.SettleAtEnd {
		for _, order := range []*trader.Order{t.Long(), t.Short()} {
			if order.Active() {
				order.Leave()
				closed++
			}
		}
	}

	return Fitness(t.Capital()), Trace{
		"capital":     t.Capital(),
		"opened":      opened,
		"closed":      closed,
		"ticks":       series.TickCount(),
		"open_at_end": openAtEnd,
	}
}
