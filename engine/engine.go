// Package engine is the in-process compute engine the training job starts
// before importing data. It owns the imported frames, tracks their memory
// against the configured ceiling and decides how many workers tree builders
// may use.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/automltrain/frame"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/pkg/log"
	"github.com/YuminosukeSato/automltrain/pkg/params"
)

const defaultPort = 54321

// Options configures the engine. Unknown keys of the engine group are kept
// in Extra and ignored.
type Options struct {
	IP          string
	Port        int
	Name        string
	NThreads    int    // -1 uses every core
	MaxMemBytes uint64 // 0 means unlimited
	MinMemBytes uint64
	Seed        int64
	Extra       map[string]any
}

var knownOptions = map[string]bool{
	"ip": true, "port": true, "name": true, "nthreads": true,
	"max_mem_size": true, "min_mem_size": true, "seed": true,
}

// DecodeOptions reads Options from the engine hyperparameter group. Memory
// sizes accept human-readable values such as "4G" or "512MB".
func DecodeOptions(g params.Group) (Options, error) {
	opts := Options{
		IP:    g.String("localhost", "ip"),
		Name:  g.String("", "name"),
		Extra: make(map[string]any),
	}

	var err error
	if opts.Port, err = g.Int(defaultPort, "port"); err != nil {
		return opts, err
	}
	if opts.NThreads, err = g.Int(-1, "nthreads"); err != nil {
		return opts, err
	}
	seed, err := g.Int(-1, "seed")
	if err != nil {
		return opts, err
	}
	opts.Seed = int64(seed)

	if opts.MaxMemBytes, err = parseSize(g, "max_mem_size"); err != nil {
		return opts, err
	}
	if opts.MinMemBytes, err = parseSize(g, "min_mem_size"); err != nil {
		return opts, err
	}

	for k, v := range g {
		if !knownOptions[k] {
			opts.Extra[k] = v
		}
	}
	return opts, nil
}

func parseSize(g params.Group, key string) (uint64, error) {
	s := g.String("", key)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.NewValidationError(key, "must be a memory size such as 4G", s)
	}
	return n, nil
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return errors.NewValidationError("port", "must be between 0 and 65535", o.Port)
	}
	if o.NThreads == 0 || o.NThreads < -1 {
		return errors.NewValidationError("nthreads", "must be -1 or a positive count", o.NThreads)
	}
	if o.MaxMemBytes > 0 && o.MinMemBytes > o.MaxMemBytes {
		return errors.NewValidationError("min_mem_size", "must not exceed max_mem_size", humanize.Bytes(o.MinMemBytes))
	}
	return nil
}

// Cluster is a running engine.
type Cluster struct {
	opts    Options
	name    string
	started time.Time
	logger  log.Logger

	mu     sync.Mutex
	frames map[string]*frame.Frame
	used   uint64
}

// Start validates opts and brings up the engine. The engine is started once
// per job and never torn down; process exit releases it.
func Start(ctx context.Context, opts Options, logger log.Logger) (*Cluster, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewEngineStartError("context done before start", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.NewEngineStartError("invalid options", err)
	}
	if logger == nil {
		logger = log.GetLoggerWithName("engine")
	}

	name := opts.Name
	if name == "" {
		name = "automl_" + uuid.NewString()
	}
	c := &Cluster{
		opts:    opts,
		name:    name,
		started: time.Now(),
		frames:  make(map[string]*frame.Frame),
	}
	c.logger = logger.With(log.ClusterNameKey, name)

	maxMem := "unlimited"
	if opts.MaxMemBytes > 0 {
		maxMem = humanize.Bytes(opts.MaxMemBytes)
	}
	c.logger.Info("Engine started",
		log.NThreadsKey, c.NThreads(),
		log.MaxMemKey, maxMem,
		"endpoint", fmt.Sprintf("%s:%d", opts.IP, opts.Port),
	)
	for k := range opts.Extra {
		c.logger.Debug("Ignoring unknown engine option", "option", k)
	}
	return c, nil
}

// Name returns the cluster name.
func (c *Cluster) Name() string { return c.name }

// Seed returns the configured seed, -1 when unset.
func (c *Cluster) Seed() int64 { return c.opts.Seed }

// NThreads returns the number of workers available to the engine.
func (c *Cluster) NThreads() int {
	if c.opts.NThreads > 0 {
		return c.opts.NThreads
	}
	return runtime.GOMAXPROCS(0)
}

// Uptime returns how long the engine has been running.
func (c *Cluster) Uptime() time.Duration { return time.Since(c.started) }

// ImportFiles parses paths into one frame and registers it. Parse failures
// and exceeding the memory ceiling are DataImportErrors.
func (c *Cluster) ImportFiles(ctx context.Context, paths ...string) (*frame.Frame, error) {
	label := fmt.Sprint(paths)
	if len(paths) == 1 {
		label = paths[0]
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewDataImportError(label, err)
	}

	start := time.Now()
	f, err := frame.ImportFiles(paths...)
	if err != nil {
		return nil, errors.NewDataImportError(label, err)
	}

	size := f.SizeBytes()
	c.mu.Lock()
	if c.opts.MaxMemBytes > 0 && c.used+size > c.opts.MaxMemBytes {
		c.mu.Unlock()
		return nil, errors.NewDataImportError(label, errors.Newf("frame needs %s, only %s of %s left",
			humanize.Bytes(size), humanize.Bytes(c.opts.MaxMemBytes-c.used), humanize.Bytes(c.opts.MaxMemBytes)))
	}
	c.used += size
	c.frames[f.Key] = f
	c.mu.Unlock()

	c.logger.Info("Imported frame",
		log.FrameKey, f.Key,
		log.PathKey, label,
		log.SamplesKey, f.NRows(),
		"columns", f.NCols(),
		"size", humanize.Bytes(size),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return f, nil
}

// Frame returns a registered frame by key.
func (c *Cluster) Frame(key string) (*frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.frames[key]
	return f, ok
}

// MemoryUsed returns the bytes held by registered frames.
func (c *Cluster) MemoryUsed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}
