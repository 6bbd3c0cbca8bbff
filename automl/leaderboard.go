package automl

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// Row is one trained candidate on the leaderboard.
type Row struct {
	ModelID      string
	Algo         string
	Metrics      map[string]float64
	TrainingTime time.Duration
}

// Metric returns the named metric, NaN when it was not computed.
func (r Row) Metric(name string) float64 {
	v, ok := r.Metrics[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// Leaderboard ranks the trained candidates of one search.
type Leaderboard struct {
	Project    string
	Problem    Problem
	SortMetric string
	Rows       []Row
}

// Len returns the number of ranked models.
func (lb *Leaderboard) Len() int {
	if lb == nil {
		return 0
	}
	return len(lb.Rows)
}

// Columns returns the metric columns in display order, the sort metric first.
func (lb *Leaderboard) Columns() []string {
	cols := []string{lb.SortMetric}
	for _, m := range metricsFor(lb.Problem) {
		if m != lb.SortMetric {
			cols = append(cols, m)
		}
	}
	return cols
}

// sort orders rows by the sort metric. Missing values go last and ties are
// broken by model id so the ranking is reproducible.
func (lb *Leaderboard) sort() {
	higher := higherIsBetter(lb.SortMetric)
	sort.SliceStable(lb.Rows, func(i, j int) bool {
		a, b := lb.Rows[i].Metric(lb.SortMetric), lb.Rows[j].Metric(lb.SortMetric)
		switch {
		case math.IsNaN(a) && math.IsNaN(b):
			return lb.Rows[i].ModelID < lb.Rows[j].ModelID
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		case a == b:
			return lb.Rows[i].ModelID < lb.Rows[j].ModelID
		case higher:
			return a > b
		default:
			return a < b
		}
	})
}

// WriteLeaderboardCSV writes the leaderboard as CSV: model_id, algo, the
// metric columns and training_time_ms. Metrics that were not computed are
// left empty.
func WriteLeaderboardCSV(path string, lb *Leaderboard) error {
	if lb.Len() == 0 {
		return errors.NewValueError("WriteLeaderboardCSV", "empty leaderboard")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}

	cols := lb.Columns()
	w := csv.NewWriter(f)
	header := append([]string{"model_id", "algo"}, cols...)
	header = append(header, "training_time_ms")
	records := [][]string{header}
	for _, row := range lb.Rows {
		rec := []string{row.ModelID, row.Algo}
		for _, c := range cols {
			v := row.Metric(c)
			if math.IsNaN(v) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rec = append(rec, strconv.FormatInt(row.TrainingTime.Milliseconds(), 10))
		records = append(records, rec)
	}
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}

// PlotLeaderboard renders the sort metric of every model as a horizontal bar
// chart and writes it to path as PNG. The leader is drawn at the top.
func PlotLeaderboard(path string, lb *Leaderboard) error {
	if lb.Len() == 0 {
		return errors.NewValueError("PlotLeaderboard", "empty leaderboard")
	}

	n := lb.Len()
	values := make(plotter.Values, n)
	names := make([]string, n)
	for i, row := range lb.Rows {
		// bottom-up, so the leader ends on the top line
		k := n - 1 - i
		v := row.Metric(lb.SortMetric)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		values[k] = v
		names[k] = row.ModelID
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Leaderboard %s", lb.Project)
	p.X.Label.Text = lb.SortMetric

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)

	height := vg.Length(n)*vg.Points(22) + 2*vg.Inch
	c := vgimg.New(8*vg.Inch, height)
	p.Draw(draw.New(c))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}
