package trainjob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/pkg/log"
)

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 255
)

// FailureMessage formats the failure record of err.
func FailureMessage(err error) string {
	return fmt.Sprintf("Exception during training: %s\n%s", err.Error(), errors.StackTrace(err))
}

// WriteFailure writes the failure record of err to path, creating parent
// directories.
func WriteFailure(path string, err error) error {
	if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
		return errors.Wrapf(mkErr, "failed to create directory for %s", path)
	}
	if wErr := os.WriteFile(path, []byte(FailureMessage(err)), 0o644); wErr != nil {
		return errors.Wrapf(wErr, "failed to write %s", path)
	}
	return nil
}

// RunOptions configure Main.
type RunOptions struct {
	Prefix string
	Stderr io.Writer
	Logger log.Logger

	// JobOptions are passed to New.
	JobOptions []Option
}

// Main runs one job and returns the process exit code. Every error is
// handled here: it is written to the failure file, echoed to stderr and
// mapped to ExitFailure.
func Main(ctx context.Context, opts RunOptions) int {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("trainjob")
	}

	layout := NewLayout(opts.Prefix)
	jobOpts := append([]Option{WithLogger(logger)}, opts.JobOptions...)
	job := New(layout, jobOpts...)

	err := job.Run(ctx)
	if err == nil {
		logger.Info("Training complete", log.PathKey, job.ArtifactPath(), log.ExitCodeKey, ExitSuccess)
		return ExitSuccess
	}

	msg := FailureMessage(err)
	if wErr := WriteFailure(layout.FailurePath(), err); wErr != nil {
		logger.Error("Cannot write failure record", wErr, log.PathKey, layout.FailurePath())
	}
	fmt.Fprintln(stderr, msg)
	logger.Error("Training failed", err, log.ErrorKindKey, errors.Kind(err), log.ExitCodeKey, ExitFailure)
	return ExitFailure
}
