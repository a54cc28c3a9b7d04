package main

import (
	"context"
	"flag"

	"chartevo/internal/config"
	"chartevo/internal/storage"
)

// commonFlags override config file values, but only when set on the command
// line.
type commonFlags struct {
	configPath  *string
	seed        *int64
	workers     *int
	generations *int
	population  *int
	store       *string
	dbPath      *string
	logLevel    *string
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath:  fs.String("config", "", "YAML config file"),
		seed:        fs.Int64("seed", 0, "random seed, 0 picks one from the clock"),
		workers:     fs.Int("workers", 0, "evaluation workers"),
		generations: fs.Int("generations", 0, "stop after N generations, 0 runs until interrupted"),
		population:  fs.Int("pop", 0, "population size"),
		store:       fs.String("store", "", "store backend: memory|sqlite"),
		dbPath:      fs.String("db-path", "", "sqlite database path"),
		logLevel:    fs.String("log-level", "", "debug|info|warn|error"),
	}
}

func (f *commonFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(*f.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *commonFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "seed":
			cfg.Population.Seed = *f.seed
		case "workers":
			cfg.Population.Workers = *f.workers
		case "generations":
			cfg.Population.MaxGenerations = *f.generations
		case "pop":
			cfg.Population.Size = *f.population
		case "store":
			cfg.Store.Kind = *f.store
		case "db-path":
			cfg.Store.Path = *f.dbPath
		case "log-level":
			cfg.Log.Level = *f.logLevel
		}
	})
}

type storeFlags struct {
	configPath *string
	store      *string
	dbPath     *string
}

func registerStoreFlags(fs *flag.FlagSet) *storeFlags {
	return &storeFlags{
		configPath: fs.String("config", "", "YAML config file"),
		store:      fs.String("store", "", "store backend: memory|sqlite"),
		dbPath:     fs.String("db-path", "", "sqlite database path"),
	}
}

func (f *storeFlags) open(ctx context.Context, fs *flag.FlagSet) (storage.Store, error) {
	cfg, err := config.LoadWithEnv(*f.configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "store":
			cfg.Store.Kind = *f.store
		case "db-path":
			cfg.Store.Path = *f.dbPath
		}
	})

	return storage.Open(ctx, cfg.Store.Kind, cfg.Store.Path)
}
