package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/resume-renderer/internal/observability"
)

// Paths inside the sandbox container
const (
	InputDir   = "/work/in"
	OutputDir  = "/work/out"
	SourceName = "main.tex"
)

// DefaultCommand compiles the mounted source with shell escape disabled
var DefaultCommand = []string{
	"pdflatex",
	"-interaction=nonstopmode",
	"-halt-on-error",
	"-no-shell-escape",
	"-output-directory=" + OutputDir,
	InputDir + "/" + SourceName,
}

// Config controls how compile jobs are run
type Config struct {
	Image         string
	PullIfMissing bool
	// WorkRoot is the host directory job directories are created in. It must
	// be visible to the container engine at the same path.
	WorkRoot       string
	User           string
	Command        []string
	Timeout        time.Duration
	CleanupTimeout time.Duration
	Limits         Limits
	MaxPDFBytes    int64
	MaxLogBytes    int64
	// MaxConcurrent caps simultaneous jobs; zero means unlimited
	MaxConcurrent int64
}

// Defaults for unset Config fields
const (
	DefaultTimeout        = 30 * time.Second
	DefaultCleanupTimeout = 15 * time.Second
	DefaultMaxPDFBytes    = 16 << 20
	DefaultMaxLogBytes    = 8 << 10
	DefaultUser           = "1000:1000"
)

func (c Config) withDefaults() Config {
	if len(c.Command) == 0 {
		c.Command = DefaultCommand
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = DefaultCleanupTimeout
	}
	if c.MaxPDFBytes <= 0 {
		c.MaxPDFBytes = DefaultMaxPDFBytes
	}
	if c.MaxLogBytes <= 0 {
		c.MaxLogBytes = DefaultMaxLogBytes
	}
	if c.WorkRoot == "" {
		c.WorkRoot = os.TempDir()
	}
	return c
}

// Compiler turns LaTeX source into PDF bytes, one fresh container per job.
// It is safe for concurrent use.
type Compiler struct {
	engine     ContainerEngine
	cfg        Config
	logger     *zap.Logger
	sem        *semaphore.Weighted
	imageReady atomic.Bool
	newID      func() string
	now        func() time.Time
	// jobDone, when set, sees every job after cleanup
	jobDone func(*Job)
}

// New creates a compiler that runs jobs through engine
func New(engine ContainerEngine, cfg Config, logger *zap.Logger) (*Compiler, error) {
	if engine == nil {
		return nil, errors.New("compiler: container engine is required")
	}
	if cfg.Image == "" {
		return nil, errors.New("compiler: image is required")
	}
	cfg = cfg.withDefaults()

	c := &Compiler{
		engine: engine,
		cfg:    cfg,
		logger: observability.OrNop(logger),
		newID:  func() string { return uuid.NewString() },
		now:    time.Now,
	}
	if cfg.MaxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return c, nil
}

// Compile compiles source and returns the PDF. It returns *CompilationError
// when the tool fails, *TimeoutError when the job deadline passes and the
// caller's context error when the caller gives up. The job's container is
// removed before Compile returns in every case.
func (c *Compiler) Compile(ctx context.Context, source string) ([]byte, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer c.sem.Release(1)
	}

	now := c.now()
	job := newJob(c.newID(), source, now, c.deadline(ctx, now))
	jobCtx, cancel := context.WithDeadline(ctx, job.Deadline)
	defer cancel()

	logger := c.logger.With(zap.String("job_id", job.ID))
	if c.jobDone != nil {
		defer c.jobDone(job)
	}

	pdf, err := c.run(jobCtx, ctx, job, logger)

	observability.CompileJobsTotal.WithLabelValues(job.Outcome().String()).Inc()
	if err != nil {
		var compErr *CompilationError
		if errors.As(err, &compErr) {
			logger.Error("latex compilation failed",
				zap.Int64("exit_code", compErr.ExitCode),
				zap.String("message", compErr.Message),
				zap.String("log_tail", compErr.LogOutput),
				zap.NamedError("cause", compErr.Cause))
		} else {
			logger.Warn("compile job did not complete",
				zap.Stringer("outcome", job.Outcome()),
				zap.Error(err))
		}
		return nil, err
	}

	logger.Info("compiled pdf",
		zap.Int("pdf_bytes", len(pdf)),
		zap.Duration("duration", c.now().Sub(now)))
	return pdf, nil
}

// deadline is the earlier of the caller's deadline and the configured timeout
func (c *Compiler) deadline(ctx context.Context, now time.Time) time.Time {
	d := now.Add(c.cfg.Timeout)
	if callerDeadline, ok := ctx.Deadline(); ok && callerDeadline.Before(d) {
		return callerDeadline
	}
	return d
}

func (c *Compiler) run(jobCtx, callerCtx context.Context, job *Job, logger *zap.Logger) ([]byte, error) {
	if err := c.ensureImage(jobCtx, logger); err != nil {
		_ = job.transition(StateFailed)
		_ = job.transition(StateCleanedUp)
		return nil, c.classify(jobCtx, callerCtx, job, err)
	}

	var pdf []byte
	err := c.withContainer(jobCtx, job, logger, func(id string, outDir string) error {
		if err := c.engine.StartContainer(jobCtx, id); err != nil {
			_ = job.transition(StateFailed)
			return err
		}
		if err := job.transition(StateStarted); err != nil {
			return err
		}
		if err := job.transition(StateWaiting); err != nil {
			return err
		}

		exitCode, err := c.engine.WaitContainer(jobCtx, id)
		if err != nil {
			if errors.Is(jobCtx.Err(), context.DeadlineExceeded) && !errors.Is(callerCtx.Err(), context.Canceled) {
				_ = job.transition(StateTimedOut)
			} else {
				_ = job.transition(StateFailed)
			}
			return err
		}

		if exitCode != 0 {
			_ = job.transition(StateFailed)
			return &CompilationError{
				JobID:     job.ID,
				Message:   fmt.Sprintf("compiler exited with status %d", exitCode),
				ExitCode:  exitCode,
				LogOutput: c.readLogTail(outDir),
			}
		}

		pdf, err = c.readPDF(outDir)
		if err != nil {
			_ = job.transition(StateFailed)
			return &CompilationError{
				JobID:     job.ID,
				Message:   "compiler exited cleanly but produced no usable PDF",
				LogOutput: c.readLogTail(outDir),
				Cause:     err,
			}
		}
		return job.transition(StateSucceeded)
	})
	if err != nil {
		return nil, c.classify(jobCtx, callerCtx, job, err)
	}
	return pdf, nil
}

// classify maps a job error to what callers see. Tool failures pass
// through, caller cancellation wins over the job deadline and any other
// sandbox error becomes a CompilationError.
func (c *Compiler) classify(jobCtx, callerCtx context.Context, job *Job, err error) error {
	var compErr *CompilationError
	if errors.As(err, &compErr) {
		return err
	}

	switch {
	case errors.Is(callerCtx.Err(), context.Canceled):
		return fmt.Errorf("compile job %s cancelled: %w", job.ID, callerCtx.Err())
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		return &TimeoutError{JobID: job.ID, Timeout: job.Budget, Cause: err}
	default:
		return &CompilationError{JobID: job.ID, Message: "sandbox operation failed", Cause: err}
	}
}

func (c *Compiler) ensureImage(ctx context.Context, logger *zap.Logger) error {
	if c.imageReady.Load() {
		return nil
	}

	exists, err := c.engine.ImageExists(ctx, c.cfg.Image)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageUnavailable, err)
	}
	if !exists {
		if !c.cfg.PullIfMissing {
			return fmt.Errorf("%w: %s is not present and pulling is disabled", ErrImageUnavailable, c.cfg.Image)
		}
		logger.Info("pulling compiler image", zap.String("image", c.cfg.Image))
		if err := c.engine.PullImage(ctx, c.cfg.Image); err != nil {
			return fmt.Errorf("%w: %v", ErrImageUnavailable, err)
		}
	}

	c.imageReady.Store(true)
	return nil
}

// withContainer prepares the job directory, creates the job's container and
// runs fn. The container and directory are always released before it
// returns, on a context detached from caller cancellation.
func (c *Compiler) withContainer(ctx context.Context, job *Job, logger *zap.Logger, fn func(id, outDir string) error) error {
	dir, inDir, outDir, err := c.prepareWorkDir(job)
	if err != nil {
		if dir != "" {
			_ = os.RemoveAll(dir)
		}
		_ = job.transition(StateFailed)
		_ = job.transition(StateCleanedUp)
		return &CompilationError{JobID: job.ID, Message: "failed to prepare job directory", Cause: err}
	}

	name := "resume-pdf-" + job.ID
	spec := ContainerSpec{
		Name:       name,
		Image:      c.cfg.Image,
		User:       c.cfg.User,
		Cmd:        c.cfg.Command,
		WorkingDir: OutputDir,
		Labels: map[string]string{
			LabelManagedBy: ManagedByValue,
			LabelJobID:     job.ID,
		},
		Mounts: []Mount{
			{Source: inDir, Target: InputDir, ReadOnly: true},
			{Source: outDir, Target: OutputDir},
		},
		Limits: c.cfg.Limits,
	}

	id, createErr := c.engine.CreateContainer(ctx, spec)
	if createErr != nil {
		_ = job.transition(StateFailed)
		// the engine may have created it before the request failed
		c.release(job, name, dir, logger)
		return createErr
	}
	observability.CompileJobsActive.Inc()
	defer func() {
		observability.CompileJobsActive.Dec()
		c.release(job, id, dir, logger)
	}()

	return fn(id, outDir)
}

func (c *Compiler) release(job *Job, id, dir string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CleanupTimeout)
	defer cancel()

	if err := c.engine.RemoveContainer(ctx, id); err != nil {
		observability.ContainerCleanupFailures.Inc()
		logger.Error("failed to remove sandbox container",
			zap.String("container", id),
			zap.Error(err))
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove job directory", zap.String("dir", dir), zap.Error(err))
	}

	if !job.State().Terminal() {
		_ = job.transition(StateFailed)
	}
	if err := job.transition(StateCleanedUp); err != nil {
		logger.Error("unexpected job state during cleanup", zap.Error(err))
	}
}

func (c *Compiler) prepareWorkDir(job *Job) (dir, inDir, outDir string, err error) {
	dir, err = os.MkdirTemp(c.cfg.WorkRoot, "job-"+job.ID+"-")
	if err != nil {
		return "", "", "", err
	}
	inDir = filepath.Join(dir, "in")
	outDir = filepath.Join(dir, "out")

	if err = os.Mkdir(inDir, 0o755); err != nil {
		return dir, "", "", err
	}
	if err = os.Mkdir(outDir, 0o777); err != nil {
		return dir, "", "", err
	}
	// the container user differs from ours; umask must not narrow this
	if err = os.Chmod(outDir, 0o777); err != nil {
		return dir, "", "", err
	}
	if err = os.Chmod(dir, 0o755); err != nil {
		return dir, "", "", err
	}
	if err = os.WriteFile(filepath.Join(inDir, SourceName), []byte(job.Source), 0o644); err != nil {
		return dir, "", "", err
	}
	return dir, inDir, outDir, nil
}

func (c *Compiler) readPDF(outDir string) ([]byte, error) {
	path := filepath.Join(outDir, pdfName())
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, c.cfg.MaxPDFBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.cfg.MaxPDFBytes {
		return nil, fmt.Errorf("pdf exceeds %d bytes", c.cfg.MaxPDFBytes)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, errors.New("output is not a PDF")
	}
	return data, nil
}

// readLogTail returns the last MaxLogBytes of the tool's log file
func (c *Compiler) readLogTail(outDir string) string {
	f, err := os.Open(filepath.Join(outDir, logName()))
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	if offset := info.Size() - c.cfg.MaxLogBytes; offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return ""
		}
	}
	data, err := io.ReadAll(io.LimitReader(f, c.cfg.MaxLogBytes))
	if err != nil {
		return ""
	}
	return string(data)
}

func pdfName() string { return baseName() + ".pdf" }
func logName() string { return baseName() + ".log" }

func baseName() string {
	return SourceName[:len(SourceName)-len(filepath.Ext(SourceName))]
}
