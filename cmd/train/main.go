// Command train is the container entrypoint of the AutoML training image.
// The platform starts it as "<image> train"; everything else comes from the
// filesystem under the prefix.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/YuminosukeSato/automltrain/pkg/log"
	"github.com/YuminosukeSato/automltrain/trainjob"
)

// Exit code for command-line usage errors.
const exitUsage = 2

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run parses args and runs the job, returning the process exit code.
func run(args []string, stderr io.Writer) int {
	// the platform passes the command before any flag
	if len(args) > 0 && args[0] == "train" {
		args = args[1:]
	}

	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, `
Usage:
  train [train] [options]

Reads <prefix>/input/config/hyperparameters.json and the training and testing
channels under <prefix>/input/data, writes the leader model to <prefix>/model
or the failure record to <prefix>/output/failure.

Options:
`)
		fs.PrintDefaults()
	}
	prefix := fs.String("prefix", envOr("AUTOML_PREFIX", trainjob.DefaultPrefix), "Root of the platform filesystem layout.")
	logLevel := fs.String("log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn or error.")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return trainjob.ExitSuccess
		}
		return exitUsage
	}
	if fs.NArg() > 0 && fs.Arg(0) != "train" {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		return exitUsage
	}

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	log.Setup(stderr, level)
	logger := log.GetLoggerWithName("trainjob")

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer undo()
	if err != nil {
		logger.Warn("Cannot set GOMAXPROCS from the CPU quota", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return trainjob.Main(ctx, trainjob.RunOptions{
		Prefix: *prefix,
		Stderr: stderr,
		Logger: logger,
	})
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
