// Package trainjob runs one AutoML training job against the hosting
// platform's filesystem contract: hyperparameters and channel data are read
// from fixed paths under the prefix, the leader is written to the model
// directory and a failure record to output/failure.
package trainjob

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/automltrain/automl"
	"github.com/YuminosukeSato/automltrain/engine"
	"github.com/YuminosukeSato/automltrain/frame"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/pkg/log"
)

// State is a step of the job.
type State string

// States in order; FAILED may follow any of them.
const (
	StateUninitialized    State = "UNINITIALIZED"
	StateEngineStarted    State = "ENGINE_STARTED"
	StateDataLoaded       State = "DATA_LOADED"
	StateFeaturesResolved State = "FEATURES_RESOLVED"
	StateTraining         State = "TRAINING"
	StateComplete         State = "COMPLETE"
	StateFailed           State = "FAILED"
)

// File names written next to the leader artifact.
const (
	LeaderboardFile = "leaderboard.csv"
	LeaderboardPlot = "leaderboard.png"
)

// EngineStarter brings up the compute engine.
type EngineStarter func(ctx context.Context, opts engine.Options, logger log.Logger) (*engine.Cluster, error)

// Job is a single training run. A Job runs at most once.
type Job struct {
	layout      Layout
	logger      log.Logger
	startEngine EngineStarter

	state    State
	target   string
	features []string
	train    *frame.Frame
	test     *frame.Frame
	aml      *automl.AutoML
	artifact string
}

// Option configures a Job.
type Option func(*Job)

// WithLogger sets the job logger.
func WithLogger(logger log.Logger) Option {
	return func(j *Job) { j.logger = logger }
}

// WithEngineStarter replaces engine.Start.
func WithEngineStarter(start EngineStarter) Option {
	return func(j *Job) { j.startEngine = start }
}

// New creates a job over layout.
func New(layout Layout, opts ...Option) *Job {
	j := &Job{
		layout:      layout,
		startEngine: engine.Start,
		state:       StateUninitialized,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = log.GetLoggerWithName("trainjob")
	}
	return j
}

// State returns the current state.
func (j *Job) State() State { return j.state }

// Target returns the resolved response column.
func (j *Job) Target() string { return j.target }

// Features returns the resolved feature columns.
func (j *Job) Features() []string { return append([]string(nil), j.features...) }

// Frames returns the imported training and testing frames.
func (j *Job) Frames() (train, test *frame.Frame) { return j.train, j.test }

// Leaderboard returns the search leaderboard, nil before TRAINING finished.
func (j *Job) Leaderboard() *automl.Leaderboard {
	if j.aml == nil {
		return nil
	}
	return j.aml.Leaderboard()
}

// ArtifactPath returns where the leader was written.
func (j *Job) ArtifactPath() string { return j.artifact }

func (j *Job) enter(s State, fields ...any) {
	j.state = s
	j.logger.Info("Entering state", append([]any{log.StateKey, string(s)}, fields...)...)
}

// Run executes the job. Configuration and input problems are reported
// before the engine starts; a panic anywhere is returned as a PanicError.
func (j *Job) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			j.state = StateFailed
			j.logger.Error("Entering state", err, log.StateKey, string(StateFailed), log.ErrorKindKey, errors.Kind(err))
		}
	}()
	defer errors.Recover(&err, "Job.Run")

	if j.state != StateUninitialized {
		return errors.Newf("job already ran (state %s)", j.state)
	}
	started := time.Now()

	cfg, err := LoadConfiguration(j.layout.ConfigPath())
	if err != nil {
		return err
	}
	tp, err := cfg.TrainingParams()
	if err != nil {
		return err
	}
	engineOpts, err := engine.DecodeOptions(cfg.Engine)
	if err != nil {
		return errors.NewEngineStartError("invalid engine options", err)
	}
	searchParams, err := automl.DecodeParams(cfg.Search)
	if err != nil {
		return errors.NewConfigurationError("aml", "invalid search parameters", err)
	}

	inputs, err := LocateInputs(j.layout.ChannelDir(ChannelTraining), j.layout.ChannelDir(ChannelTesting), tp.ConcatFiles)
	if err != nil {
		return err
	}
	for channel, skipped := range inputs.Skipped {
		if len(skipped) > 0 {
			j.logger.Warn("Ignoring extra files, set concat_files to use them",
				log.ChannelKey, channel,
				log.FilesKey, len(skipped),
			)
		}
	}

	cluster, err := j.startEngine(ctx, engineOpts, j.logger.With(log.ComponentKey, "engine"))
	if err != nil {
		return err
	}
	j.enter(StateEngineStarted, log.ClusterNameKey, cluster.Name(), log.NThreadsKey, cluster.NThreads())

	if j.train, err = cluster.ImportFiles(ctx, inputs.Training...); err != nil {
		return err
	}
	if j.test, err = cluster.ImportFiles(ctx, inputs.Testing...); err != nil {
		return err
	}
	j.enter(StateDataLoaded, "train_rows", j.train.NRows(), "test_rows", j.test.NRows())

	if err := j.resolveFeatures(tp); err != nil {
		return err
	}
	j.enter(StateFeaturesResolved,
		log.ResponseKey, j.target,
		log.FeaturesKey, len(j.features),
		"classification", tp.Classification,
	)

	j.enter(StateTraining, log.ProjectKey, searchParams.ProjectName)
	j.aml = automl.New(searchParams,
		automl.WithLogger(j.logger.With(log.ComponentKey, "automl")),
		automl.WithWorkers(cluster.NThreads()),
	)
	if err := j.aml.Train(ctx, j.features, j.target, j.train, j.test); err != nil {
		return err
	}

	if err := j.save(tp); err != nil {
		return err
	}
	j.enter(StateComplete,
		log.ModelIDKey, j.aml.Leader().ID,
		log.PathKey, j.artifact,
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return nil
}

// resolveFeatures picks the target, derives the feature set and, for
// classification, recodes the target of both frames to one shared domain.
func (j *Job) resolveFeatures(tp TrainingParams) error {
	target, err := tp.ResolveTarget(j.train)
	if err != nil {
		return err
	}
	if !j.test.Has(target) {
		return errors.NewConfigurationError("training.target", fmt.Sprintf("column %q not in testing data", target), nil)
	}
	for _, c := range tp.IgnoredColumns {
		if !j.train.Has(c) {
			j.logger.Warn("Ignored column not in training data", "column", c)
		}
	}

	features := ResolveFeatures(j.train.Names(), target, tp.IgnoredColumns)
	if len(features) == 0 {
		return errors.NewConfigurationError("training.ignored_columns", "no feature columns left", nil)
	}

	if tp.Classification {
		domain, err := frame.AlignDomains(target, j.train, j.test)
		if err != nil {
			return errors.NewConfigurationError("training.target", "cannot recode as categorical", err)
		}
		j.logger.Debug("Recoded target as categorical", log.ResponseKey, target, log.DomainKey, len(domain))
	}

	j.target = target
	j.features = features
	return nil
}

// save writes the leader, the leaderboard CSV and, if asked, the chart.
func (j *Job) save(tp TrainingParams) error {
	dir := j.layout.ModelDir()
	path, err := automl.SaveArtifact(dir, j.aml.Leader())
	if err != nil {
		return err
	}
	j.artifact = path

	lb := j.aml.Leaderboard()
	if err := automl.WriteLeaderboardCSV(filepath.Join(dir, LeaderboardFile), lb); err != nil {
		return err
	}
	if tp.PlotLeaderboard {
		if err := automl.PlotLeaderboard(filepath.Join(dir, LeaderboardPlot), lb); err != nil {
			return err
		}
	}
	return nil
}
