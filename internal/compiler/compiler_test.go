package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/resume-renderer/internal/observability"
)

const (
	testImage  = "texlive/texlive@sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testSource = `\documentclass{article}\begin{document}Hello\end{document}`
)

type jobRecorder struct {
	mu   sync.Mutex
	jobs []*Job
}

func (r *jobRecorder) record(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j)
}

func (r *jobRecorder) last(t *testing.T) *Job {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.jobs)
	return r.jobs[len(r.jobs)-1]
}

func newTestCompiler(t *testing.T, engine *fakeEngine, mutate func(*Config), logger *zap.Logger) (*Compiler, *jobRecorder, string) {
	t.Helper()
	workRoot := t.TempDir()
	cfg := Config{
		Image:    testImage,
		WorkRoot: workRoot,
		Timeout:  2 * time.Second,
		Limits:   Limits{MemoryBytes: 256 << 20, NanoCPUs: 1e9, PidsLimit: 64, TmpfsBytes: 16 << 20},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(engine, cfg, logger)
	require.NoError(t, err)

	rec := &jobRecorder{}
	c.jobDone = rec.record
	return c, rec, workRoot
}

func assertWorkRootEmpty(t *testing.T, workRoot string) {
	t.Helper()
	entries, err := os.ReadDir(workRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "job directories should be removed")
}

func TestCompile_Success(t *testing.T) {
	engine := newFakeEngine(testImage)
	var gotSource string
	engine.behaviour = func(inDir, outDir string) int64 {
		data, _ := os.ReadFile(filepath.Join(inDir, SourceName))
		gotSource = string(data)
		return writePDF(inDir, outDir)
	}
	c, rec, workRoot := newTestCompiler(t, engine, nil, nil)

	pdf, err := c.Compile(context.Background(), testSource)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
	assert.Equal(t, testSource, gotSource)

	assert.Equal(t, 0, engine.liveCount())
	assertWorkRootEmpty(t, workRoot)

	job := rec.last(t)
	assert.Equal(t, []State{StateCreated, StateStarted, StateWaiting, StateSucceeded, StateCleanedUp}, job.History())
	assert.Equal(t, StateSucceeded, job.Outcome())
}

func TestCompile_ContainerSpecIsLockedDown(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = writePDF
	c, rec, _ := newTestCompiler(t, engine, nil, nil)

	_, err := c.Compile(context.Background(), testSource)
	require.NoError(t, err)

	require.Len(t, engine.created, 1)
	spec := engine.created[0]
	job := rec.last(t)

	assert.Equal(t, testImage, spec.Image)
	assert.Equal(t, DefaultUser, spec.User)
	assert.Equal(t, DefaultCommand, spec.Cmd)
	assert.Equal(t, "resume-pdf-"+job.ID, spec.Name)
	assert.Equal(t, ManagedByValue, spec.Labels[LabelManagedBy])
	assert.Equal(t, job.ID, spec.Labels[LabelJobID])
	assert.Equal(t, Limits{MemoryBytes: 256 << 20, NanoCPUs: 1e9, PidsLimit: 64, TmpfsBytes: 16 << 20}, spec.Limits)

	require.Len(t, spec.Mounts, 2)
	assert.Equal(t, InputDir, spec.Mounts[0].Target)
	assert.True(t, spec.Mounts[0].ReadOnly)
	assert.Equal(t, OutputDir, spec.Mounts[1].Target)
	assert.False(t, spec.Mounts[1].ReadOnly)
	assert.Contains(t, spec.Cmd, "-no-shell-escape")
}

func TestCompile_NonZeroExit(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = failWithLog
	core, logs := observer.New(zap.ErrorLevel)
	c, rec, workRoot := newTestCompiler(t, engine, nil, zap.New(core))

	_, err := c.Compile(context.Background(), `\foo`)
	require.Error(t, err)

	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, int64(1), compErr.ExitCode)
	assert.Contains(t, compErr.LogOutput, "Undefined control sequence")
	assert.NotContains(t, err.Error(), "Undefined control sequence")

	assert.Equal(t, 0, engine.liveCount())
	assertWorkRootEmpty(t, workRoot)
	assert.Equal(t, StateFailed, rec.last(t).Outcome())
	assert.Equal(t, StateCleanedUp, rec.last(t).State())

	entries := logs.FilterMessage("latex compilation failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["log_tail"], "Undefined control sequence")
}

func TestCompile_CleanExitWithoutPDF(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = func(string, string) int64 { return 0 }
	c, _, _ := newTestCompiler(t, engine, nil, nil)

	_, err := c.Compile(context.Background(), testSource)
	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, 0, engine.liveCount())
}

func TestCompile_OutputNotPDF(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = func(_, outDir string) int64 {
		_ = os.WriteFile(filepath.Join(outDir, "main.pdf"), []byte("<html>"), 0o644)
		return 0
	}
	c, _, _ := newTestCompiler(t, engine, nil, nil)

	_, err := c.Compile(context.Background(), testSource)
	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)
}

func TestCompile_PDFTooLarge(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = writePDF
	c, _, _ := newTestCompiler(t, engine, func(cfg *Config) { cfg.MaxPDFBytes = 8 }, nil)

	_, err := c.Compile(context.Background(), testSource)
	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)
	assert.Contains(t, compErr.Cause.Error(), "exceeds")
}

func TestCompile_LogTailIsBounded(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = func(_, outDir string) int64 {
		log := strings.Repeat("x", 100) + "! Emergency stop."
		_ = os.WriteFile(filepath.Join(outDir, "main.log"), []byte(log), 0o644)
		return 1
	}
	c, _, _ := newTestCompiler(t, engine, func(cfg *Config) { cfg.MaxLogBytes = 17 }, nil)

	_, err := c.Compile(context.Background(), testSource)
	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "! Emergency stop.", compErr.LogOutput)
}

func TestCompile_Timeout(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = nil // never exits
	c, rec, workRoot := newTestCompiler(t, engine, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond }, nil)

	before := testutil.ToFloat64(observability.CompileJobsTotal.WithLabelValues("TIMED_OUT"))
	_, err := c.Compile(context.Background(), testSource)
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
	var compErr *CompilationError
	assert.False(t, errors.As(err, &compErr), "timeout must be distinct from compilation failure")

	assert.Equal(t, 0, engine.liveCount(), "container must be removed after timeout")
	assertWorkRootEmpty(t, workRoot)
	job := rec.last(t)
	assert.Equal(t, StateTimedOut, job.Outcome())
	assert.Equal(t, []State{StateCreated, StateStarted, StateWaiting, StateTimedOut, StateCleanedUp}, job.History())
	assert.Equal(t, before+1, testutil.ToFloat64(observability.CompileJobsTotal.WithLabelValues("TIMED_OUT")))
}

func TestCompile_CallerDeadlineShortensJob(t *testing.T) {
	engine := newFakeEngine(testImage)
	c, rec, _ := newTestCompiler(t, engine, func(cfg *Config) { cfg.Timeout = time.Minute }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_, err := c.Compile(ctx, testSource)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, timeoutErr.Timeout, time.Second)
	assert.Equal(t, 0, engine.liveCount())
	assert.Equal(t, StateTimedOut, rec.last(t).Outcome())
}

func TestCompile_CallerCancellationStillCleansUp(t *testing.T) {
	engine := newFakeEngine(testImage)
	c, rec, workRoot := newTestCompiler(t, engine, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := c.Compile(ctx, testSource)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr))

	assert.Equal(t, 0, engine.liveCount())
	assertWorkRootEmpty(t, workRoot)
	assert.Equal(t, StateFailed, rec.last(t).Outcome())
	assert.Equal(t, StateCleanedUp, rec.last(t).State())
}

func TestCompile_ImageMissing(t *testing.T) {
	t.Run("pull disabled", func(t *testing.T) {
		engine := newFakeEngine("other")
		c, _, _ := newTestCompiler(t, engine, nil, nil)

		_, err := c.Compile(context.Background(), testSource)
		var compErr *CompilationError
		require.ErrorAs(t, err, &compErr)
		assert.ErrorIs(t, err, ErrImageUnavailable)
		assert.Empty(t, engine.created)
		assert.Zero(t, engine.pulls)
	})

	t.Run("pulled once", func(t *testing.T) {
		engine := newFakeEngine("other")
		engine.behaviour = writePDF
		c, _, _ := newTestCompiler(t, engine, func(cfg *Config) { cfg.PullIfMissing = true }, nil)

		for i := 0; i < 3; i++ {
			_, err := c.Compile(context.Background(), testSource)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, engine.pulls)
	})

	t.Run("pull fails", func(t *testing.T) {
		engine := newFakeEngine("other")
		engine.pullErr = errors.New("denied")
		c, rec, _ := newTestCompiler(t, engine, func(cfg *Config) { cfg.PullIfMissing = true }, nil)

		_, err := c.Compile(context.Background(), testSource)
		assert.ErrorIs(t, err, ErrImageUnavailable)
		assert.Equal(t, []State{StateCreated, StateFailed, StateCleanedUp}, rec.last(t).History())
	})
}

func TestCompile_CreateFailureRemovesByName(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.createErr = errors.New("conflict")
	c, rec, workRoot := newTestCompiler(t, engine, nil, nil)

	_, err := c.Compile(context.Background(), testSource)
	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)

	job := rec.last(t)
	assert.Equal(t, []string{"resume-pdf-" + job.ID}, engine.removeReqs)
	assert.Equal(t, StateCleanedUp, job.State())
	assertWorkRootEmpty(t, workRoot)
}

func TestCompile_StartFailure(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.startErr = errors.New("oci runtime error")
	c, rec, _ := newTestCompiler(t, engine, nil, nil)

	_, err := c.Compile(context.Background(), testSource)
	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, 0, engine.liveCount())
	assert.Equal(t, []State{StateCreated, StateFailed, StateCleanedUp}, rec.last(t).History())
}

func TestCompile_CleanupFailureDoesNotMaskResult(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = writePDF
	engine.removeErr = errors.New("proxy unavailable")
	core, logs := observer.New(zap.ErrorLevel)
	c, rec, _ := newTestCompiler(t, engine, nil, zap.New(core))

	before := testutil.ToFloat64(observability.ContainerCleanupFailures)
	pdf, err := c.Compile(context.Background(), testSource)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)

	assert.Equal(t, before+1, testutil.ToFloat64(observability.ContainerCleanupFailures))
	assert.Equal(t, 1, logs.FilterMessage("failed to remove sandbox container").Len())
	assert.Equal(t, StateCleanedUp, rec.last(t).State())
}

func TestCompile_ConcurrencyCap(t *testing.T) {
	engine := newFakeEngine(testImage)
	engine.behaviour = slow(20*time.Millisecond, writePDF)
	c, _, _ := newTestCompiler(t, engine, func(cfg *Config) { cfg.MaxConcurrent = 1 }, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Compile(context.Background(), testSource)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, engine.maxRunning)
	assert.Len(t, engine.created, 4)
	assert.Equal(t, 0, engine.liveCount())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Config{Image: testImage}, nil)
	assert.Error(t, err)

	_, err = New(newFakeEngine(testImage), Config{}, nil)
	assert.Error(t, err)
}
