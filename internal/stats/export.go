package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"chartevo/internal/chart"
	"chartevo/internal/model"
)

const (
	runFile     = "run.json"
	historyFile = "history.csv"
)

var historyHeader = []string{"generation", "min_fitness", "avg_fitness", "max_fitness", "trades"}

// WriteHistoryCSV writes one row per generation under a fixed header.
func WriteHistoryCSV(w io.Writer, history []model.GenerationStats) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(historyHeader); err != nil {
		return err
	}
	for _, stats := range history {
		if err := writer.Write([]string{
			strconv.Itoa(stats.Generation),
			formatFloat(stats.MinFitness),
			formatFloat(stats.AvgFitness),
			formatFloat(stats.MaxFitness),
			strconv.Itoa(stats.Trades),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadHistoryCSV(r io.Reader) ([]model.GenerationStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(historyHeader)
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("history csv is missing its header")
		}
		return nil, err
	}

	var history []model.GenerationStats
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return history, nil
		}
		if err != nil {
			return nil, err
		}
		stats, err := parseHistoryRow(record)
		if err != nil {
			return nil, fmt.Errorf("history row %d: %w", len(history)+1, err)
		}
		history = append(history, stats)
	}
}

func parseHistoryRow(record []string) (model.GenerationStats, error) {
	var stats model.GenerationStats
	var err error
	if stats.Generation, err = strconv.Atoi(record[0]); err != nil {
		return stats, err
	}
	if stats.MinFitness, err = strconv.ParseFloat(record[1], 64); err != nil {
		return stats, err
	}
	if stats.AvgFitness, err = strconv.ParseFloat(record[2], 64); err != nil {
		return stats, err
	}
	if stats.MaxFitness, err = strconv.ParseFloat(record[3], 64); err != nil {
		return stats, err
	}
	if stats.Trades, err = strconv.Atoi(record[4]); err != nil {
		return stats, err
	}
	return stats, nil
}

// WriteSeriesCSV writes the tick index, elapsed seconds and value of every
// sample in series.
func WriteSeriesCSV(w io.Writer, series *chart.Series, ticksPerSecond float64) error {
	if ticksPerSecond <= 0 {
		return fmt.Errorf("ticks per second must be > 0")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"tick", "seconds", "value"}); err != nil {
		return err
	}
	for tick, value := range series.Values() {
		if err := writer.Write([]string{
			strconv.Itoa(tick),
			formatFloat(float64(tick) / ticksPerSecond),
			formatFloat(value),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportRun writes run.json and history.csv into outDir/<run id> and returns
// that directory.
func ExportRun(outDir string, run model.RunRecord, history []model.GenerationStats) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}
	dir := filepath.Join(outDir, run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, runFile), run); err != nil {
		return "", err
	}

	file, err := os.Create(filepath.Join(dir, historyFile))
	if err != nil {
		return "", err
	}
	defer file.Close()
	if err := WriteHistoryCSV(file, history); err != nil {
		return "", err
	}
	return dir, file.Sync()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
