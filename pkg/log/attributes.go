// Package log defines standard attribute keys for training-job logging.
//
// Keys follow a hierarchical naming convention (e.g. "job.state",
// "data.samples") so log lines from the orchestrator, the engine and the
// search can be filtered together.

package log

// Job and Orchestration Context
const (
	// StateKey is the orchestrator state being entered.
	// Values: see the State* constants in package trainjob.
	StateKey = "job.state"

	// ErrorKindKey is the failure taxonomy name (ConfigurationError, ...).
	ErrorKindKey = "job.error_kind"

	// ExitCodeKey is the process exit code the job will return.
	ExitCodeKey = "job.exit_code"

	// ChannelKey names an input channel ("training", "testing").
	ChannelKey = "input.channel"

	// PathKey is a filesystem path being read or written.
	PathKey = "input.path"

	// FilesKey is the number of candidate files found in a channel.
	FilesKey = "input.files"

	// ComponentKey identifies which package is emitting the log line.
	ComponentKey = "ml.component"
)

// Engine Context
const (
	// ClusterNameKey is the name of the running compute engine.
	ClusterNameKey = "engine.cluster"

	// NThreadsKey is the engine's worker count.
	NThreadsKey = "engine.nthreads"

	// MaxMemKey is the engine's memory ceiling in bytes.
	MaxMemKey = "engine.max_mem_bytes"

	// FrameKey is the key under which a frame is registered in the engine.
	FrameKey = "engine.frame"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows in a frame.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// ResponseKey is the response (target) column name.
	ResponseKey = "data.response"

	// DomainKey is the number of levels of a categorical column.
	DomainKey = "data.domain"

	// ProblemKey is "regression", "binomial" or "multinomial".
	ProblemKey = "data.problem"
)

// Search and Model Context
const (
	// ProjectKey is the AutoML project name.
	ProjectKey = "automl.project"

	// AlgoKey is the candidate algorithm (GLM, DRF, GBM, XRT).
	AlgoKey = "model.algo"

	// ModelIDKey is the unique id of a trained candidate.
	ModelIDKey = "model.id"

	// ModelsKey is a count of trained models.
	ModelsKey = "automl.models"

	// SortMetricKey is the metric used to rank the leaderboard.
	SortMetricKey = "automl.sort_metric"

	// HyperParamsKey contains candidate hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// IterationKey records the current iteration number.
	IterationKey = "training.iteration"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// MetricValueKey records the sort-metric value of a candidate.
	MetricValueKey = "metrics.value"

	// LossKey records loss value during training.
	LossKey = "metrics.loss"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	// Automatically populated by the error logging functions.
	StacktraceKey = "error.stacktrace"
)
