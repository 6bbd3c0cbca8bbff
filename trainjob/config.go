package trainjob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/YuminosukeSato/automltrain/frame"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/pkg/params"
)

// DefaultPrefix is the root of the platform's filesystem contract.
const DefaultPrefix = "/opt/ml"

// Channel names.
const (
	ChannelTraining = "training"
	ChannelTesting  = "testing"
)

// Layout resolves the fixed paths under a prefix.
type Layout struct {
	Prefix string
}

// NewLayout returns the layout rooted at prefix, DefaultPrefix when empty.
func NewLayout(prefix string) Layout {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Layout{Prefix: prefix}
}

// ConfigPath is the hyperparameters file.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.Prefix, "input", "config", "hyperparameters.json")
}

// ChannelDir is the directory of an input channel.
func (l Layout) ChannelDir(channel string) string {
	return filepath.Join(l.Prefix, "input", "data", channel)
}

// ModelDir receives the leader artifact.
func (l Layout) ModelDir() string { return filepath.Join(l.Prefix, "model") }

// FailurePath is written when the run fails.
func (l Layout) FailurePath() string { return filepath.Join(l.Prefix, "output", "failure") }

// Group aliases: the first name is the documented one, later names are
// accepted for configurations written for the platform's AutoML image.
var (
	trainingGroup = []string{"training"}
	engineGroup   = []string{"h2o", "engine"}
	searchGroup   = []string{"aml", "search"}
)

// Config is the decoded hyperparameters file. It is read-only after load.
type Config struct {
	Training params.Group
	Engine   params.Group
	Search   params.Group
}

// LoadConfiguration reads and partitions the hyperparameters file. A missing
// file, malformed JSON or a missing group is a ConfigurationError, so every
// configuration problem surfaces before the engine starts.
func LoadConfiguration(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(path, "cannot read hyperparameters", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewConfigurationError(path, "malformed hyperparameters JSON", err)
	}

	cfg := &Config{}
	if cfg.Training, err = group(raw, trainingGroup); err != nil {
		return nil, err
	}
	if cfg.Engine, err = group(raw, engineGroup); err != nil {
		return nil, err
	}
	if cfg.Search, err = group(raw, searchGroup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// group returns the first present alias as an object. The platform passes
// hyperparameter values as strings, so a string holding a JSON object is
// accepted too.
func group(raw map[string]any, names []string) (params.Group, error) {
	for _, name := range names {
		v, ok := raw[name]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			return params.Group(val), nil
		case string:
			var obj map[string]any
			if err := json.Unmarshal([]byte(val), &obj); err != nil || obj == nil {
				return nil, errors.NewConfigurationError(name, "group is not a JSON object", err)
			}
			return params.Group(obj), nil
		default:
			return nil, errors.NewConfigurationError(name, fmt.Sprintf("group is a %T, not an object", v), nil)
		}
	}
	return nil, errors.NewConfigurationError(strings.Join(names, "|"), "required group is missing", nil)
}

// TrainingParams are the run-level settings.
type TrainingParams struct {
	// Target is the configured response column; empty means "label",
	// falling back to "response".
	Target          string
	Classification  bool
	ConcatFiles     bool
	PlotLeaderboard bool
	IgnoredColumns  []string
}

// TrainingParams decodes the training group. classification and
// concat_files are enabled only by the literal "true".
func (c *Config) TrainingParams() (TrainingParams, error) {
	g := c.Training
	tp := TrainingParams{
		Target:          strings.TrimSpace(g.String("", "target")),
		Classification:  g.String("", "classification") == "true",
		ConcatFiles:     g.String("", "concat_files") == "true",
		PlotLeaderboard: g.Bool("plot_leaderboard"),
	}
	ignored, err := g.StringList("ignored_columns")
	if err != nil {
		return tp, errors.NewConfigurationError("training.ignored_columns", "cannot decode", err)
	}
	tp.IgnoredColumns = ignored
	return tp, nil
}

// ResolveTarget picks the response column of f.
func (tp TrainingParams) ResolveTarget(f *frame.Frame) (string, error) {
	if tp.Target != "" {
		if !f.Has(tp.Target) {
			return "", errors.NewConfigurationError("training.target",
				fmt.Sprintf("column %q not in training data (columns: %s)", tp.Target, strings.Join(f.Names(), ", ")), nil)
		}
		return tp.Target, nil
	}
	for _, name := range []string{"label", "response"} {
		if f.Has(name) {
			return name, nil
		}
	}
	return "", errors.NewConfigurationError("training.target",
		fmt.Sprintf("no target configured and neither \"label\" nor \"response\" is a column (columns: %s)", strings.Join(f.Names(), ", ")), nil)
}

// ResolveFeatures returns columns minus the target and the ignored columns,
// keeping column order.
func ResolveFeatures(columns []string, target string, ignored []string) []string {
	features := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == target || slices.Contains(ignored, c) {
			continue
		}
		features = append(features, c)
	}
	return features
}
