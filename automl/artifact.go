package automl

import (
	"encoding/gob"
	"path/filepath"
	"strings"
	"time"

	coremodel "github.com/YuminosukeSato/automltrain/core/model"
	"github.com/YuminosukeSato/automltrain/linear"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/tree"
)

// ArtifactVersion is bumped whenever the gob layout of Artifact changes.
const ArtifactVersion = 1

// Artifact is the file written for the leader.
type Artifact struct {
	Version int
	SavedAt time.Time
	Model   *Model
}

func init() {
	// Model.Estimator is an interface; gob needs the concrete types.
	gob.Register(&linear.LinearRegression{})
	gob.Register(&linear.LogisticRegression{})
	gob.Register(&tree.GradientBoosting{})
	gob.Register(&tree.RandomForest{})
}

// SaveArtifact writes m to dir under its model id and returns the path.
func SaveArtifact(dir string, m *Model) (string, error) {
	if m == nil {
		return "", errors.NewValueError("SaveArtifact", "no model to save")
	}
	if m.Estimator == nil {
		return "", errors.NewNotFittedError(m.ID, "SaveArtifact")
	}
	path := filepath.Join(dir, fileName(m.ID))
	a := Artifact{Version: ArtifactVersion, SavedAt: time.Now().UTC(), Model: m}
	if err := coremodel.SaveModel(&a, path); err != nil {
		return "", errors.Wrapf(err, "failed to save model %s", m.ID)
	}
	return path, nil
}

// LoadArtifact reads an artifact written by SaveArtifact.
func LoadArtifact(path string) (*Artifact, error) {
	var a Artifact
	if err := coremodel.LoadModel(&a, path); err != nil {
		return nil, err
	}
	if a.Version != ArtifactVersion {
		return nil, errors.Newf("artifact %s has version %d, want %d", path, a.Version, ArtifactVersion)
	}
	if a.Model == nil || a.Model.Estimator == nil {
		return nil, errors.Newf("artifact %s holds no model", path)
	}
	return &a, nil
}

// fileName maps a model id to a safe file name.
func fileName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
