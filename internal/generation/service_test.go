package generation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/resume-renderer/internal/compiler"
	"github.com/jonathan/resume-renderer/internal/observability"
	"github.com/jonathan/resume-renderer/internal/rendering"
	"github.com/jonathan/resume-renderer/internal/templates"
	"github.com/jonathan/resume-renderer/internal/types"
	"github.com/jonathan/resume-renderer/internal/validation"
)

type fakeCatalog struct {
	entries map[string]types.TemplateMetadata
	err     error
}

func (c *fakeCatalog) FindByID(_ context.Context, id string) (types.TemplateMetadata, error) {
	if c.err != nil {
		return types.TemplateMetadata{}, c.err
	}
	meta, ok := c.entries[id]
	if !ok {
		return types.TemplateMetadata{}, templates.ErrTemplateNotFound
	}
	return meta, nil
}

type fakeRenderer struct {
	mu     sync.Mutex
	calls  []rendering.Request
	source string
	err    error
}

func (r *fakeRenderer) Render(_ context.Context, req rendering.Request) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if r.err != nil {
		return "", r.err
	}
	return r.source, nil
}

type fakeCompiler struct {
	calls  int
	source string
	pdf    []byte
	err    error
}

func (c *fakeCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	c.calls++
	c.source = source
	if c.err != nil {
		return nil, c.err
	}
	return c.pdf, nil
}

const fakePDF = "%PDF-1.5\nfake\n%%EOF"

type fixture struct {
	catalog  *fakeCatalog
	renderer *fakeRenderer
	compiler *fakeCompiler
	logs     *observer.ObservedLogs
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	validator, err := validation.NewContentValidator(zap.NewNop())
	require.NoError(t, err)

	core, logs := observer.New(zapcore.InfoLevel)
	f := &fixture{
		catalog: &fakeCatalog{entries: map[string]types.TemplateMetadata{
			"classic": {
				ID:                       "classic",
				TemplatePath:             "classic/resume.tex",
				RequiredSubscriptionTier: types.TierFree,
				Params:                   map[string]any{"fontSize": "11pt"},
			},
			"modern": {
				ID:                       "modern",
				TemplatePath:             "modern/resume.tex",
				RequiredSubscriptionTier: types.TierBasic,
				SupportedLocales:         []string{"en", "es"},
			},
			"executive": {
				ID:                       "executive",
				TemplatePath:             "executive/resume.tex",
				RequiredSubscriptionTier: types.TierProfessional,
			},
		}},
		renderer: &fakeRenderer{source: `\documentclass{article}\begin{document}Jane\end{document}`},
		compiler: &fakeCompiler{pdf: []byte(fakePDF)},
		logs:     logs,
	}
	f.service = NewService(f.catalog, validator, f.renderer, f.compiler, zap.New(core))
	return f
}

func testResume() *types.Resume {
	return &types.Resume{
		Basics: types.Basics{Name: "Jane Doe", Email: "jane@example.com"},
		Work:   []types.Work{{Name: "Acme", Position: "Engineer", StartDate: "2020-01"}},
	}
}

func TestService_Generate_Success(t *testing.T) {
	f := newFixture(t)

	stream, err := f.service.Generate(context.Background(), Request{
		TemplateID: "classic",
		Resume:     testResume(),
		Tier:       types.TierFree,
		Locale:     "en",
	})
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, string(data))

	require.Len(t, f.renderer.calls, 1)
	call := f.renderer.calls[0]
	assert.Equal(t, "classic/resume.tex", call.TemplatePath)
	assert.Equal(t, "en", call.Locale)
	assert.Equal(t, "11pt", call.Params["fontSize"])
	assert.Equal(t, f.renderer.source, f.compiler.source)
}

func TestService_Generate_RecordsOutcomeMetric(t *testing.T) {
	f := newFixture(t)

	before := testutil.ToFloat64(observability.GenerationsTotal.WithLabelValues("success"))
	_, err := f.service.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(observability.GenerationsTotal.WithLabelValues("success")))

	before = testutil.ToFloat64(observability.GenerationsTotal.WithLabelValues(string(KindTemplateNotFound)))
	_, err = f.service.Generate(context.Background(), Request{TemplateID: "missing", Resume: testResume()})
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(observability.GenerationsTotal.WithLabelValues(string(KindTemplateNotFound))))
}

func TestService_Generate_TemplateNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "nope", Resume: testResume()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, err, templates.ErrTemplateNotFound)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "nope", genErr.TemplateID)
	assert.Empty(t, f.renderer.calls)
	assert.Zero(t, f.compiler.calls)
}

func TestService_Generate_CatalogFailureIsRenderingError(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("source unreadable")

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderingError)
}

func TestService_Generate_TierEnforcement(t *testing.T) {
	tests := []struct {
		name     string
		template string
		tier     types.Tier
		allowed  bool
	}{
		{"free on free template", "classic", types.TierFree, true},
		{"free on basic template", "modern", types.TierFree, false},
		{"basic on basic template", "modern", types.TierBasic, true},
		{"basic on professional template", "executive", types.TierBasic, false},
		{"professional on professional template", "executive", types.TierProfessional, true},
		{"professional on free template", "classic", types.TierProfessional, true},
		{"invalid tier", "classic", types.Tier(42), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.service.Generate(context.Background(), Request{
				TemplateID: tt.template,
				Resume:     testResume(),
				Tier:       tt.tier,
			})
			if tt.allowed {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTemplateAccessDenied)
			var genErr *Error
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, tt.tier, genErr.ActualTier)
			assert.Empty(t, f.renderer.calls, "renderer must not run when access is denied")
			assert.Zero(t, f.compiler.calls)
		})
	}
}

func TestService_Generate_AccessDeniedMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "executive", Resume: testResume(), Tier: types.TierBasic})
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, types.TierProfessional, genErr.RequiredTier)
	assert.Contains(t, genErr.PublicMessage(), "PROFESSIONAL")
	assert.Contains(t, genErr.PublicMessage(), "BASIC")
}

func TestService_Generate_InjectionDetected(t *testing.T) {
	f := newFixture(t)
	resume := testResume()
	resume.Work[0].Highlights = []string{`Built \input{/etc/passwd} pipelines`}

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "classic", Resume: resume})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjectionDetected)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "work[0].highlights[0]", genErr.Field)
	assert.Equal(t, "file-inclusion", genErr.Rule)
	assert.NotContains(t, err.Error(), "/etc/passwd")
	assert.NotContains(t, genErr.PublicMessage(), "/etc/passwd")

	assert.Empty(t, f.renderer.calls, "renderer must not run on rejected content")
	assert.Zero(t, f.compiler.calls)
}

func TestService_Generate_RendererInjectionIsClassified(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = &validation.InjectionError{Field: "basics.name", Rule: "custom-1"}

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjectionDetected)
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "custom-1", genErr.Rule)
}

func TestService_Generate_NilResume(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "classic"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderingError)
	assert.Empty(t, f.renderer.calls)
}

func TestService_Generate_RenderingError(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = &rendering.TemplateError{Path: "classic/resume.tex", Message: "parse failed"}

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderingError)

	var tmplErr *rendering.TemplateError
	assert.ErrorAs(t, err, &tmplErr, "cause stays in the chain for operators")

	entries := f.logs.FilterMessage("rendering failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Zero(t, f.compiler.calls)
}

func TestService_Generate_CompilationTimeout(t *testing.T) {
	f := newFixture(t)
	f.compiler.err = &compiler.TimeoutError{JobID: "job-1", Cause: context.DeadlineExceeded}

	stream, err := f.service.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
	require.Error(t, err)
	assert.Nil(t, stream)
	assert.ErrorIs(t, err, ErrCompilationTimeout)
	assert.NotErrorIs(t, err, ErrCompilationFailed)
}

func TestService_Generate_CompilationFailed(t *testing.T) {
	f := newFixture(t)
	f.compiler.err = &compiler.CompilationError{
		JobID:     "job-1",
		Message:   "pdflatex exited with status 1",
		ExitCode:  1,
		LogOutput: "! Undefined control sequence.\nl.12 /srv/secret/path",
	}

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompilationFailed)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.NotContains(t, genErr.PublicMessage(), "Undefined control sequence")
	assert.NotContains(t, genErr.PublicMessage(), "/srv/secret/path")

	var compErr *compiler.CompilationError
	require.ErrorAs(t, err, &compErr)
	assert.Contains(t, compErr.LogOutput, "Undefined control sequence")
}

func TestService_Generate_SandboxFailureIsCompilationFailed(t *testing.T) {
	f := newFixture(t)
	f.compiler.err = compiler.ErrImageUnavailable

	_, err := f.service.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompilationFailed)
	assert.ErrorIs(t, err, compiler.ErrImageUnavailable)
}

func TestService_Generate_CancellationPassesThrough(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.compiler.err = context.Canceled

	_, err := f.service.Generate(ctx, Request{TemplateID: "classic", Resume: testResume()})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, classified := KindOf(err)
	assert.False(t, classified)
}

func TestService_Generate_UnsupportedLocaleStillRenders(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Generate(context.Background(), Request{
		TemplateID: "modern",
		Resume:     testResume(),
		Tier:       types.TierBasic,
		Locale:     "fr",
	})
	require.NoError(t, err)

	require.Len(t, f.renderer.calls, 1)
	assert.Equal(t, "fr", f.renderer.calls[0].Locale)

	entries := f.logs.FilterMessage("template does not declare requested locale, rendering with fallback translations").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "fr", entries[0].ContextMap()["locale"])
}

func TestService_Generate_WithoutCompiler(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.catalog, nil, f.renderer, nil, nil)

	_, err := svc.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompilationFailed)
}

func TestService_RenderLaTeX(t *testing.T) {
	f := newFixture(t)

	source, meta, err := f.service.RenderLaTeX(context.Background(), Request{
		TemplateID: "modern",
		Resume:     testResume(),
		Tier:       types.TierProfessional,
		Locale:     "es",
	})
	require.NoError(t, err)
	assert.Equal(t, f.renderer.source, source)
	assert.Equal(t, "modern", meta.ID)
	assert.Zero(t, f.compiler.calls)
}

func TestService_Generate_ConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	validator, err := validation.NewContentValidator(nil)
	require.NoError(t, err)
	svc := NewService(f.catalog, validator, f.renderer, &concurrentCompiler{pdf: []byte(fakePDF)}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := svc.Generate(context.Background(), Request{TemplateID: "classic", Resume: testResume()})
			if err == nil {
				_ = stream.Close()
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, f.renderer.calls, 16)
}

type concurrentCompiler struct {
	pdf []byte
}

func (c *concurrentCompiler) Compile(context.Context, string) ([]byte, error) {
	return c.pdf, nil
}
