package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"chartevo/internal/logging"
	"chartevo/internal/scape"
	"chartevo/internal/storage"
)

type Config struct {
	Population PopulationConfig `yaml:"population"`
	Network    NetworkConfig    `yaml:"network"`
	Chart      ChartConfig      `yaml:"chart"`
	Trading    TradingConfig    `yaml:"trading"`
	Evolution  EvolutionConfig  `yaml:"evolution"`
	Store      StoreConfig      `yaml:"store"`
	Log        logging.Config   `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type PopulationConfig struct {
	Size           int    `yaml:"size" default:"100" validate:"gt=0"`
	Workers        int    `yaml:"workers" default:"4" validate:"gt=0"`
	Seed           int64  `yaml:"seed"` // 0 picks a time-based seed
	MaxGenerations int    `yaml:"max_generations" validate:"gte=0"`
	SeriesSeeding  string `yaml:"series_seeding" default:"per_generation" validate:"oneof=per_generation per_individual"`
}

type NetworkConfig struct {
	Inputs   int     `yaml:"inputs" default:"3" validate:"gt=0"`
	Outputs  int     `yaml:"outputs" default:"4" validate:"gt=0"`
	Hidden   int     `yaml:"hidden" default:"5" validate:"gte=0"`
	Layers   int     `yaml:"layers" default:"2" validate:"gte=0"`
	Response float64 `yaml:"response" default:"1" validate:"gt=0"`
}

type ChartConfig struct {
	Min            float64 `yaml:"min" default:"0"`
	Max            float64 `yaml:"max" default:"10" validate:"gtfield=Min"`
	Volatility     float64 `yaml:"volatility" default:"0.25" validate:"gt=0,lte=1"`
	Seconds        float64 `yaml:"seconds" default:"20" validate:"gt=0"`
	TicksPerSecond float64 `yaml:"ticks_per_second" default:"30" validate:"gt=0"`
}

// TickCount is the number of samples in one episode's series.
func (c ChartConfig) TickCount() int {
	return int(c.Seconds * c.TicksPerSecond)
}

type TradingConfig struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	Charge          string  `yaml:"charge" default:"none" validate:"oneof=none proportional fixed"`
	ChargeAmount    float64 `yaml:"charge_amount" validate:"gte=0"`
	SettleAtEnd     bool    `yaml:"settle_at_end"`
	InputEncoding   string  `yaml:"input_encoding" default:"entrances" validate:"oneof=entrances position"`
	ActionEncoding  string  `yaml:"action_encoding" default:"per_side" validate:"oneof=per_side combined"`
	ActionThreshold float64 `yaml:"action_threshold" default:"0.5" validate:"gt=0,lt=1"`
}

type EvolutionConfig struct {
	Selection            string  `yaml:"selection" default:"roulette" validate:"oneof=roulette tournament elite"`
	TournamentSize       int     `yaml:"tournament_size" default:"3" validate:"gt=0"`
	SelectionPool        int     `yaml:"selection_pool" validate:"gte=0"` // elite selection pool, 0 is a fifth of the population
	EliteCount           int     `yaml:"elite_count" validate:"gte=0"`
	MutationRate         float64 `yaml:"mutation_rate" default:"0.1" validate:"gte=0,lte=1"`
	MutationStdDev       float64 `yaml:"mutation_stddev" default:"0.15" validate:"gte=0"`
	CrossoverRate        float64 `yaml:"crossover_rate" default:"0.3" validate:"gte=0,lte=1"`
	FitnessPostprocessor string  `yaml:"fitness_postprocessor" default:"none" validate:"oneof=none non_negative"`
}

type StoreConfig struct {
	Kind string `yaml:"kind" validate:"oneof=memory sqlite"` // defaults to the backend compiled in
	Path string `yaml:"path" default:"chartevo.db"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=0,lte=65535"` // 0 picks an ephemeral port
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"5s"`
	StatsInterval   time.Duration `yaml:"stats_interval" default:"500ms" validate:"gt=0"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Default returns the configuration built from field defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.Store.Kind = storage.DefaultStoreKind()
	return &c, nil
}

// Parse applies defaults and then the YAML document on top, so explicit zero
// values in data win over defaults.
func Parse(data []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Load reads and validates a YAML configuration file. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides it with CHARTEVO_*
// environment variables before validating.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// ApplyEnv overrides fields from the environment seen through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("CHARTEVO_SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CHARTEVO_SEED: %w", err)
		}
		c.Population.Seed = seed
	}
	if v, ok := lookup("CHARTEVO_WORKERS"); ok && v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHARTEVO_WORKERS: %w", err)
		}
		c.Population.Workers = workers
	}
	if v, ok := lookup("CHARTEVO_STORE"); ok && v != "" {
		c.Store.Kind = v
	}
	if v, ok := lookup("CHARTEVO_DB_PATH"); ok && v != "" {
		c.Store.Path = v
	}
	if v, ok := lookup("CHARTEVO_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks field rules and that the network shape fits the chosen
// encodings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	if c.Network.Layers > 0 && c.Network.Hidden == 0 {
		return fmt.Errorf("network.hidden must be > 0 when network.layers > 0")
	}
	if c.Evolution.EliteCount > c.Population.Size {
		return fmt.Errorf("evolution.elite_count must not exceed population.size")
	}
	if c.Evolution.SelectionPool > c.Population.Size {
		return fmt.Errorf("evolution.selection_pool must not exceed population.size")
	}
	if c.Chart.TickCount() <= 0 {
		return fmt.Errorf("chart.seconds * chart.ticks_per_second must give at least one tick")
	}

	input, err := scape.ResolveInputEncoding(c.Trading.InputEncoding)
	if err != nil {
		return err
	}
	if input.Width() != c.Network.Inputs {
		return fmt.Errorf("network.inputs is %d but input encoding %s needs %d", c.Network.Inputs, input.Name(), input.Width())
	}
	action, err := scape.ResolveActionEncoding(c.Trading.ActionEncoding, c.Trading.ActionThreshold)
	if err != nil {
		return err
	}
	if action.Width() != c.Network.Outputs {
		return fmt.Errorf("network.outputs is %d but action encoding %s needs %d", c.Network.Outputs, action.Name(), action.Width())
	}
	return nil
}
