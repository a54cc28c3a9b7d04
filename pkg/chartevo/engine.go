package chartevo

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"chartevo/internal/chart"
	"chartevo/internal/config"
	"chartevo/internal/evo"
	"chartevo/internal/logging"
	"chartevo/internal/metrics"
	"chartevo/internal/model"
	"chartevo/internal/nn"
	"chartevo/internal/platform"
	"chartevo/internal/scape"
	"chartevo/internal/server"
	"chartevo/internal/storage"
	"chartevo/internal/trader"
)

type Option func(*options)

type options struct {
	logger       *logging.Logger
	store        storage.Store
	registry     *prometheus.Registry
	scape        scape.Scape
	onGeneration func(model.GenerationStats)
}

// WithLogger replaces the logger built from the log section of the config.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStore uses an initialized store instead of opening one from the
// config. The engine does not close it.
func WithStore(store storage.Store) Option {
	return func(o *options) { o.store = store }
}

func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithScape evaluates agents on s instead of the chart scape built from the
// config.
func WithScape(s scape.Scape) Option {
	return func(o *options) { o.scape = s }
}

func WithGenerationHook(fn func(model.GenerationStats)) Option {
	return func(o *options) { o.onGeneration = fn }
}

// Engine wires a configured trainer to its logger, store and metrics.
type Engine struct {
	cfg       *config.Config
	log       *logging.Logger
	ownsLog   bool
	store     storage.Store
	ownsStore bool
	registry  *prometheus.Registry
	scape     *scape.ChartScape
	trainer   *platform.Trainer
}

func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		def, err := config.Default()
		if err != nil {
			return nil, err
		}
		cfg = def
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{cfg: cfg, log: o.logger, store: o.store, registry: o.registry}
	if e.log == nil {
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		e.log, e.ownsLog = logger, true
	}
	if e.store == nil {
		store, err := storage.Open(context.Background(), cfg.Store.Kind, cfg.Store.Path)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.store, e.ownsStore = store, true
	}

	var recorder platform.Recorder
	if cfg.Metrics.Enabled {
		if e.registry == nil {
			e.registry = prometheus.NewRegistry()
		}
		recorder = metrics.New(e.registry)
	}

	chartScape, err := NewScape(cfg)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.scape = chartScape
	var evalScape scape.Scape = chartScape
	if o.scape != nil {
		evalScape = o.scape
	}

	selector, err := selectionFromName(cfg.Evolution.Selection, cfg.Evolution.TournamentSize, cfg.Evolution.SelectionPool)
	if err != nil {
		e.Close()
		return nil, err
	}
	postprocessor, err := postprocessorFromName(cfg.Evolution.FitnessPostprocessor)
	if err != nil {
		e.Close()
		return nil, err
	}

	trainer, err := platform.NewTrainer(platform.TrainerConfig{
		Scape:          evalScape,
		Format:         nn.NewFormat(cfg.Network.Inputs, cfg.Network.Outputs, cfg.Network.Hidden, cfg.Network.Layers),
		Response:       cfg.Network.Response,
		PopulationSize: cfg.Population.Size,
		Workers:        cfg.Population.Workers,
		Seed:           cfg.Population.Seed,
		MaxGenerations: cfg.Population.MaxGenerations,
		SeriesSeeding:  cfg.Population.SeriesSeeding,
		Selector:       selector,
		Mutation:       evo.GaussianMutation{Rate: cfg.Evolution.MutationRate, StdDev: cfg.Evolution.MutationStdDev},
		CrossoverRate:  cfg.Evolution.CrossoverRate,
		EliteCount:     cfg.Evolution.EliteCount,
		Postprocessor:  postprocessor,
		Store:          e.store,
		Recorder:       recorder,
		Logger:         e.log,
		OnGeneration:   o.onGeneration,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.trainer = trainer
	return e, nil
}

// NewScape builds the chart scape described by cfg.
func NewScape(cfg *config.Config) (*scape.ChartScape, error) {
	input, err := scape.ResolveInputEncoding(cfg.Trading.InputEncoding)
	if err != nil {
		return nil, err
	}
	actions, err := scape.ResolveActionEncoding(cfg.Trading.ActionEncoding, cfg.Trading.ActionThreshold)
	if err != nil {
		return nil, err
	}
	charge, err := chargeFromName(cfg.Trading.Charge, cfg.Trading.ChargeAmount)
	if err != nil {
		return nil, err
	}
	return scape.NewChartScape(scape.ChartConfig{
		Series:         SeriesParams(cfg),
		Input:          input,
		Actions:        actions,
		Charge:         charge,
		InitialCapital: cfg.Trading.InitialCapital,
		SettleAtEnd:    cfg.Trading.SettleAtEnd,
	})
}

func SeriesParams(cfg *config.Config) chart.SeriesParams {
	return chart.SeriesParams{
		Min:        cfg.Chart.Min,
		Max:        cfg.Chart.Max,
		Volatility: cfg.Chart.Volatility,
		TickCount:  cfg.Chart.TickCount(),
	}
}

func (e *Engine) Config() *config.Config          { return e.cfg }
func (e *Engine) Logger() *logging.Logger         { return e.log }
func (e *Engine) Store() storage.Store            { return e.store }
func (e *Engine) Trainer() *platform.Trainer      { return e.trainer }
func (e *Engine) Scape() *scape.ChartScape        { return e.scape }
func (e *Engine) Registry() *prometheus.Registry  { return e.registry }
func (e *Engine) RunID() string                   { return e.trainer.RunID() }
func (e *Engine) Start(ctx context.Context) error { return e.trainer.Start(ctx) }
func (e *Engine) Stop()                           { e.trainer.Stop() }

func (e *Engine) DrainStats() []model.GenerationStats {
	return e.trainer.DrainStats()
}

// NewServer builds the stats server for this engine from the server and
// metrics sections of the config.
func (e *Engine) NewServer() (*server.Server, error) {
	opts := []server.Option{
		server.WithHost(e.cfg.Server.Host),
		server.WithPort(e.cfg.Server.Port),
		server.WithTimeouts(e.cfg.Server.ReadTimeout, e.cfg.Server.WriteTimeout, e.cfg.Server.ShutdownTimeout),
		server.WithStatsInterval(e.cfg.Server.StatsInterval),
		server.WithLogger(e.log),
	}
	if e.registry != nil {
		opts = append(opts, server.WithMetrics(e.registry, e.cfg.Metrics.Path))
	}
	return server.New(e.store, e.trainer, opts...)
}

// Close stops the trainer and closes the store and log file the engine
// opened itself.
func (e *Engine) Close() error {
	if e.trainer != nil {
		e.trainer.Stop()
	}
	var err error
	if e.ownsStore {
		err = storage.Close(e.store)
	}
	if e.ownsLog {
		err = errors.Join(err, e.log.Close())
	}
	return err
}

func selectionFromName(name string, tournamentSize, pool int) (evo.Selector, error) {
	switch name {
	case "", "roulette":
		return evo.RouletteSelector{}, nil
	case "tournament":
		return evo.TournamentSelector{Size: tournamentSize}, nil
	case "elite":
		return evo.EliteSelector{Count: pool}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}

func postprocessorFromName(name string) (evo.FitnessPostprocessor, error) {
	switch name {
	case "", "none":
		return evo.NoopFitnessPostprocessor{}, nil
	case "non_negative":
		return evo.NonNegativePostprocessor{}, nil
	default:
		return nil, fmt.Errorf("unsupported fitness postprocessor: %s", name)
	}
}

func chargeFromName(name string, amount float64) (trader.ChargeFunc, error) {
	if amount < 0 {
		return nil, errors.New("charge amount must be >= 0")
	}
	switch name {
	case "", "none":
		return trader.NoCharge, nil
	case "proportional":
		return trader.ProportionalCharge(amount), nil
	case "fixed":
		return trader.FixedCharge(amount), nil
	default:
		return nil, fmt.Errorf("unsupported charge model: %s", name)
	}
}
