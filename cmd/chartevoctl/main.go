package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"chartevo/internal/chart"
	"chartevo/internal/config"
	"chartevo/internal/logging"
	"chartevo/internal/model"
	"chartevo/internal/platform"
	"chartevo/internal/stats"
	"chartevo/internal/storage"
	"chartevo/pkg/chartevo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], out)
	case "serve":
		return runServe(ctx, args[1:], out)
	case "history":
		return runHistory(ctx, args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	case "export":
		return runExport(ctx, args[1:], out)
	case "chart":
		return runChart(ctx, args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}

	engine, err := chartevo.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	start := time.Now()
	if err := engine.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s seed=%d population=%s workers=%d\n",
		engine.RunID(), engine.Trainer().Seed(), humanize.Comma(int64(cfg.Population.Size)), cfg.Population.Workers)

	ticker := time.NewTicker(cfg.Server.StatsInterval)
	defer ticker.Stop()
	for done := false; !done; {
		select {
		case <-engine.Trainer().Done():
			done = true
		case <-ticker.C:
		}
		printGenerations(out, engine.DrainStats())
	}

	if err := engine.Trainer().Err(); err != nil {
		return fmt.Errorf("run %s: %w", engine.RunID(), err)
	}
	generations := engine.Trainer().Generation()
	fmt.Fprintf(out, "run %s finished: %s generations, %s evaluations in %s\n",
		engine.RunID(),
		humanize.Comma(int64(generations)),
		humanize.Comma(int64(generations*cfg.Population.Size)),
		time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func runServe(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := registerCommonFlags(fs)
	host := fs.String("host", "", "listen host (overrides server.host)")
	port := fs.Int("port", -1, "listen port (overrides server.port)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port >= 0 {
		cfg.Server.Port = *port
	}

	engine, err := chartevo.New(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()
	return serve(ctx, engine, out)
}

// serve runs the engine behind the stats server until ctx is cancelled or
// the trainer finishes. A failed run returns its error right away.
func serve(ctx context.Context, engine *chartevo.Engine, out io.Writer) error {
	srv, err := engine.NewServer()
	if err != nil {
		return err
	}
	log := engine.Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	failed := make(chan error, 1)
	supervisor := platform.NewSupervisor(platform.SupervisorPolicy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		MaxRestarts:    3,
	}, platform.SupervisorHooks{
		OnRestart: func(name string, err error, restarts int) {
			log.Warn("restarting task", logging.String("task", name), logging.Int("restarts", restarts), logging.Error(err))
		},
		OnGiveUp: func(name string, err error, restarts int) {
			select {
			case failed <- fmt.Errorf("%s gave up after %d restarts: %w", name, restarts, err):
			default:
			}
			cancel()
		},
	})
	defer supervisor.StopAll()

	if err := supervisor.Start(ctx, platform.TaskSpec{Name: "http", Restart: platform.RestartTransient}, srv.Run); err != nil {
		return err
	}
	if err := supervisor.Start(ctx, platform.TaskSpec{Name: "broadcast", Restart: platform.RestartTransient}, srv.Broadcast); err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "serving run %s on %s\n", engine.RunID(), srv.Addr())

	select {
	case <-ctx.Done():
		engine.Stop()
	case <-engine.Trainer().Done():
		if err := engine.Trainer().Err(); err != nil {
			return fmt.Errorf("run %s: %w", engine.RunID(), err)
		}
		srv.Flush()
	}
	cancel()
	supervisor.StopAll()

	select {
	case err := <-failed:
		return err
	default:
	}
	if err := engine.Trainer().Err(); err != nil {
		return fmt.Errorf("run %s: %w", engine.RunID(), err)
	}
	fmt.Fprintf(out, "stopped after %s generations\n", humanize.Comma(int64(engine.Trainer().Generation())))
	return nil
}

func runHistory(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	common := registerStoreFlags(fs)
	runID := fs.String("run", "", "run id (default latest)")
	limit := fs.Int("limit", 0, "show only the last N generations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := common.open(ctx, fs)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.Close(store)
	}()

	run, err := resolveRun(ctx, store, *runID)
	if err != nil {
		return err
	}
	history, _, err := store.GetGenerations(ctx, run.ID)
	if err != nil {
		return err
	}
	if *limit > 0 && len(history) > *limit {
		history = history[len(history)-*limit:]
	}

	fmt.Fprintf(out, "run %s started %s\n", run.ID, humanize.Time(run.StartedAt))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GEN\tMIN\tAVG\tMAX\tTRADES")
	for _, s := range history {
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.4f\t%s\n", s.Generation, s.MinFitness, s.AvgFitness, s.MaxFitness, humanize.Comma(int64(s.Trades)))
	}
	return tw.Flush()
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := registerStoreFlags(fs)
	limit := fs.Int("limit", 10, "max runs to show, newest first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := common.open(ctx, fs)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.Close(store)
	}()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tPOPULATION\tSEED\tFORMAT\tSELECTION")
	for i := len(runs) - 1; i >= 0; i-- {
		if *limit > 0 && len(runs)-1-i >= *limit {
			break
		}
		r := runs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, humanize.Time(r.StartedAt), humanize.Comma(int64(r.PopulationSize)), r.Seed, r.Format, r.Selection)
	}
	return tw.Flush()
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := registerStoreFlags(fs)
	runID := fs.String("run", "", "run id (default latest)")
	outDir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := common.open(ctx, fs)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.Close(store)
	}()

	run, err := resolveRun(ctx, store, *runID)
	if err != nil {
		return err
	}
	history, _, err := store.GetGenerations(ctx, run.ID)
	if err != nil {
		return err
	}
	dir, err := stats.ExportRun(*outDir, run, history)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported run %s (%s generations) to %s\n", run.ID, humanize.Comma(int64(len(history))), dir)
	return nil
}

func runChart(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("chart", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	seed := fs.Int64("seed", 1, "series seed")
	outPath := fs.String("out", "", "write CSV to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return err
	}

	series, err := chart.Generate(chartevo.SeriesParams(cfg), *seed)
	if err != nil {
		return err
	}
	if *outPath == "" {
		return stats.WriteSeriesCSV(out, series, cfg.Chart.TicksPerSecond)
	}
	file, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := stats.WriteSeriesCSV(file, series, cfg.Chart.TicksPerSecond); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s ticks to %s\n", humanize.Comma(int64(series.TickCount())), *outPath)
	return file.Sync()
}

func resolveRun(ctx context.Context, store storage.Store, id string) (model.RunRecord, error) {
	if id != "" {
		run, ok, err := store.GetRun(ctx, id)
		if err != nil {
			return model.RunRecord{}, err
		}
		if !ok {
			return model.RunRecord{}, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
		}
		return run, nil
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return model.RunRecord{}, err
	}
	if len(runs) == 0 {
		return model.RunRecord{}, errors.New("no runs in store")
	}
	return runs[len(runs)-1], nil
}

func printGenerations(out io.Writer, batch []model.GenerationStats) {
	for _, s := range batch {
		fmt.Fprintf(out, "gen %s min=%.4f avg=%.4f max=%.4f trades=%s\n",
			humanize.Comma(int64(s.Generation)), s.MinFitness, s.AvgFitness, s.MaxFitness, humanize.Comma(int64(s.Trades)))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: chartevoctl <run|serve|history|runs|export|chart> [flags]", msg)
}
