package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"warzone-tracker/internal/domain"

	"golang.org/x/sync/errgroup"
)

// File names mirror the plot names the charting side produced, so
// artifacts from different runs sort next to their plots.

func HistogramFileName(username string, startGame, endGame int, window domain.HourWindow) string {
	return fmt.Sprintf("total_%s_%d-%d_hour_%d-%d.csv",
		sanitize(username), startGame, endGame, window.Start, window.End)
}

func DailyFileName(username string, count int) string {
	return fmt.Sprintf("daily_%s_%d.csv", sanitize(username), count)
}

func sanitize(username string) string {
	return strings.ReplaceAll(username, "#", "-")
}

func WriteHistogramCSV(path string, bins []HistogramBin) error {
	return writeCSV(path, [][]string{{"kd", "count"}}, func(w *csv.Writer) error {
		for _, b := range bins {
			if err := w.Write([]string{
				strconv.FormatFloat(b.KD, 'f', 1, 64),
				strconv.Itoa(b.Count),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func WriteDailyCSV(path string, days []DailyKD) error {
	return writeCSV(path, [][]string{{"day", "kd", "ma3", "ma7"}}, func(w *csv.Writer) error {
		for _, d := range days {
			if err := w.Write([]string{
				d.Day.Format("2006-01-02"),
				strconv.FormatFloat(d.KD, 'f', 3, 64),
				strconv.FormatFloat(d.MA3, 'f', 3, 64),
				strconv.FormatFloat(d.MA7, 'f', 3, 64),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path string, header [][]string, body func(*csv.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, row := range header {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	if err := body(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

type UserFrame struct {
	Username string
	Rows     domain.MatchRows
}

// WriteComparison writes one histogram CSV per user for the side-by-
// side comparison chart. Local file IO only, so the per-user writes
// run in parallel; the one-request-in-flight rule applies to the API,
// not the disk.
func WriteComparison(dir string, frames []UserFrame, startGame, endGame int, window domain.HourWindow) error {
	var g errgroup.Group
	for _, f := range frames {
		f := f
		g.Go(func() error {
			rows := f.Rows.Slice(startGame, endGame)
			path := filepath.Join(dir, HistogramFileName(f.Username, startGame, endGame, window))
			return WriteHistogramCSV(path, Histogram(rows.KDs()))
		})
	}
	return g.Wait()
}
