package automl

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/pkg/params"
)

// Candidate families.
const (
	AlgoGLM = "GLM"
	AlgoDRF = "DRF"
	AlgoGBM = "GBM"
	AlgoXRT = "XRT"
)

// AllAlgos lists the families in plan order.
var AllAlgos = []string{AlgoGLM, AlgoDRF, AlgoGBM, AlgoXRT}

const (
	defaultMaxModels      = 10
	defaultMaxRuntimeSecs = 3600
)

// Params controls the search.
type Params struct {
	MaxModels              int
	MaxRuntimeSecs         int
	MaxRuntimeSecsPerModel int
	Seed                   int64
	SortMetric             string
	IncludeAlgos           []string
	ExcludeAlgos           []string
	ProjectName            string
	NFolds                 int
	StoppingRounds         int
	StoppingTolerance      float64

	// Extra holds keys of the search group this package does not read.
	Extra map[string]any
}

var knownParams = map[string]bool{
	"max_models": true, "max_runtime_secs": true, "max_runtime_secs_per_model": true,
	"seed": true, "sort_metric": true, "include_algos": true, "exclude_algos": true,
	"project_name": true, "nfolds": true, "stopping_rounds": true, "stopping_tolerance": true,
}

// DecodeParams reads Params from the search hyperparameter group.
//
// max_runtime_secs of 0 means no time limit, unless max_models is 0 as well;
// then the default limit applies so the search still terminates.
func DecodeParams(g params.Group) (Params, error) {
	p := Params{Extra: make(map[string]any)}
	var err error

	if p.MaxModels, err = g.Int(defaultMaxModels, "max_models"); err != nil {
		return p, err
	}
	if p.MaxRuntimeSecs, err = g.Int(defaultMaxRuntimeSecs, "max_runtime_secs"); err != nil {
		return p, err
	}
	if p.MaxRuntimeSecs == 0 && p.MaxModels == 0 {
		p.MaxRuntimeSecs = defaultMaxRuntimeSecs
	}
	if p.MaxRuntimeSecsPerModel, err = g.Int(0, "max_runtime_secs_per_model"); err != nil {
		return p, err
	}
	seed, err := g.Int(-1, "seed")
	if err != nil {
		return p, err
	}
	p.Seed = int64(seed)
	if p.NFolds, err = g.Int(0, "nfolds"); err != nil {
		return p, err
	}
	if p.StoppingRounds, err = g.Int(3, "stopping_rounds"); err != nil {
		return p, err
	}
	if p.StoppingTolerance, err = g.Float(1e-3, "stopping_tolerance"); err != nil {
		return p, err
	}

	p.SortMetric = g.String(MetricAuto, "sort_metric")
	if _, ok := canonicalMetric(p.SortMetric); !ok {
		return p, errors.NewValidationError("sort_metric", "unknown metric", p.SortMetric)
	}

	if p.IncludeAlgos, err = algoList(g, "include_algos"); err != nil {
		return p, err
	}
	if p.ExcludeAlgos, err = algoList(g, "exclude_algos"); err != nil {
		return p, err
	}
	if len(p.IncludeAlgos) > 0 && len(p.ExcludeAlgos) > 0 {
		return p, errors.NewValidationError("include_algos", "cannot be combined with exclude_algos", p.IncludeAlgos)
	}

	p.ProjectName = g.String("", "project_name")
	if p.ProjectName == "" {
		p.ProjectName = "automl_" + uuid.NewString()
	}

	for k, v := range g {
		if !knownParams[k] {
			p.Extra[k] = v
		}
	}
	return p, nil
}

func algoList(g params.Group, key string) ([]string, error) {
	list, err := g.StringList(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		a = strings.ToUpper(strings.TrimSpace(a))
		if !slices.Contains(AllAlgos, a) {
			return nil, errors.NewValidationError(key, "unsupported algorithm (GLM, DRF, GBM, XRT)", a)
		}
		out = append(out, a)
	}
	return out, nil
}

// Allows reports whether algo may be trained under the include/exclude lists.
func (p Params) Allows(algo string) bool {
	if len(p.IncludeAlgos) > 0 {
		return slices.Contains(p.IncludeAlgos, algo)
	}
	return !slices.Contains(p.ExcludeAlgos, algo)
}

// Runtime returns the overall time budget; 0 means unlimited.
func (p Params) Runtime() time.Duration {
	return time.Duration(p.MaxRuntimeSecs) * time.Second
}

// PerModelRuntime returns the per-candidate budget; 0 means unlimited.
func (p Params) PerModelRuntime() time.Duration {
	return time.Duration(p.MaxRuntimeSecsPerModel) * time.Second
}

// EffectiveSeed resolves a seed of -1 to one derived from the clock.
func (p Params) EffectiveSeed() int64 {
	if p.Seed >= 0 {
		return p.Seed
	}
	return time.Now().UnixNano() & 0x7fffffff
}
