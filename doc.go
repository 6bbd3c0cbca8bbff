// Package automltrain runs one AutoML training job inside a hosted
// training-job container.
//
// The platform mounts a fixed filesystem layout under a prefix (default
// /opt/ml) and starts the image as "<image> train". The job reads its
// hyperparameters and input channels from that layout, runs a model search
// and writes either the leader model or a failure record back into it.
//
// # Layout
//
//	<prefix>/input/config/hyperparameters.json   training / h2o / aml groups
//	<prefix>/input/data/training/                training CSV file(s)
//	<prefix>/input/data/testing/                 leaderboard CSV file(s)
//	<prefix>/model/                              leader artifact, leaderboard.csv
//	<prefix>/output/failure                      failure record (exit 255)
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "os"
//
//	    "github.com/YuminosukeSato/automltrain/trainjob"
//	)
//
//	func main() {
//	    os.Exit(trainjob.Main(context.Background(), trainjob.RunOptions{
//	        Prefix: "/opt/ml",
//	        Stderr: os.Stderr,
//	    }))
//	}
//
// # Packages
//
// The module is organized into several packages:
//
//   - trainjob: configuration loader, input locator, job state machine, result writer
//   - engine: in-process compute engine (memory budget, thread count, frame import)
//   - automl: candidate plan, search loop, leaderboard, artifacts
//   - frame: typed in-memory frames read from CSV
//   - linear: GLM estimators (LinearRegression, LogisticRegression)
//   - tree: GBM, DRF and XRT estimators
//   - metrics: regression and classification metrics
//   - preprocessing: StandardScaler, MeanImputer
//   - core/model: estimator interfaces, state and gob persistence
//   - core/parallel: parallel loops over rows and trees
//   - pkg/errors, pkg/log, pkg/params: error taxonomy, logging, parameter decoding
//
// The command lives in cmd/train.
package automltrain
