package automl

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automltrain/pkg/log"
)

func TestLeaderboardSort(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		rows   []Row
		want   []string
	}{
		{
			name:   "lower is better",
			metric: MetricDeviance,
			rows: []Row{
				{ModelID: "b", Metrics: map[string]float64{MetricDeviance: 2}},
				{ModelID: "a", Metrics: map[string]float64{MetricDeviance: 3}},
				{ModelID: "c", Metrics: map[string]float64{MetricDeviance: 1}},
			},
			want: []string{"c", "b", "a"},
		},
		{
			name:   "higher is better",
			metric: MetricAUC,
			rows: []Row{
				{ModelID: "a", Metrics: map[string]float64{MetricAUC: 0.7}},
				{ModelID: "b", Metrics: map[string]float64{MetricAUC: 0.9}},
			},
			want: []string{"b", "a"},
		},
		{
			name:   "ties by id and missing last",
			metric: MetricAUC,
			rows: []Row{
				{ModelID: "z", Metrics: map[string]float64{}},
				{ModelID: "d", Metrics: map[string]float64{MetricAUC: 0.8}},
				{ModelID: "c", Metrics: map[string]float64{MetricAUC: 0.8}},
				{ModelID: "y", Metrics: map[string]float64{MetricAUC: math.NaN()}},
			},
			want: []string{"c", "d", "y", "z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb := &Leaderboard{SortMetric: tt.metric, Rows: tt.rows}
			lb.sort()
			var got []string
			for _, r := range lb.Rows {
				got = append(got, r.ModelID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLeaderboardColumns(t *testing.T) {
	lb := &Leaderboard{Problem: Binomial, SortMetric: MetricLogLoss}
	assert.Equal(t,
		[]string{MetricLogLoss, MetricAUC, MetricMeanPerClassError, MetricAccuracy, MetricRMSE, MetricMSE},
		lb.Columns())
}

func sampleLeaderboard() *Leaderboard {
	return &Leaderboard{
		Project:    "test",
		Problem:    Regression,
		SortMetric: MetricDeviance,
		Rows: []Row{
			{
				ModelID:      "GLM_1_AutoML_test",
				Algo:         AlgoGLM,
				Metrics:      map[string]float64{MetricDeviance: 0.25, MetricRMSE: 0.5, MetricMSE: 0.25, MetricMAE: 0.4},
				TrainingTime: 1500 * time.Millisecond,
			},
			{
				ModelID:      "GBM_1_AutoML_test",
				Algo:         AlgoGBM,
				Metrics:      map[string]float64{MetricDeviance: 4, MetricRMSE: 2, MetricMSE: 4, MetricMAE: 1.5, MetricRMSLE: 0.1},
				TrainingTime: 20 * time.Millisecond,
			},
		},
	}
}

func TestWriteLeaderboardCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "leaderboard.csv")
	require.NoError(t, WriteLeaderboardCSV(path, sampleLeaderboard()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	want := [][]string{
		{"model_id", "algo", "mean_residual_deviance", "rmse", "mse", "mae", "rmsle", "training_time_ms"},
		{"GLM_1_AutoML_test", "GLM", "0.25", "0.5", "0.25", "0.4", "", "1500"},
		{"GBM_1_AutoML_test", "GBM", "4", "2", "4", "1.5", "0.1", "20"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}

	assert.Error(t, WriteLeaderboardCSV(path, &Leaderboard{}))
}

func TestPlotLeaderboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.png")
	lb := sampleLeaderboard()
	lb.Rows[1].Metrics[MetricDeviance] = math.NaN()
	require.NoError(t, PlotLeaderboard(path, lb))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	assert.Error(t, PlotLeaderboard(path, nil))
}

func TestPlotLeaderboard_FromSearch(t *testing.T) {
	train, test := regressionFrames(t)
	aml := New(testParams(), WithLogger(log.NewNopLogger()))
	require.NoError(t, aml.Train(context.Background(), nil, "y", train, test))

	path := filepath.Join(t.TempDir(), "leaderboard.png")
	require.NoError(t, PlotLeaderboard(path, aml.Leaderboard()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
