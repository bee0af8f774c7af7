package generation

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/compiler"
	"github.com/jonathan/resume-renderer/internal/observability"
	"github.com/jonathan/resume-renderer/internal/rendering"
	"github.com/jonathan/resume-renderer/internal/templates"
	"github.com/jonathan/resume-renderer/internal/types"
	"github.com/jonathan/resume-renderer/internal/validation"
)

const tracerName = "github.com/jonathan/resume-renderer/internal/generation"

// Catalog resolves template ids
type Catalog interface {
	FindByID(ctx context.Context, id string) (types.TemplateMetadata, error)
}

// ContentValidator rejects resumes carrying typesetting injection
type ContentValidator interface {
	Validate(resume *types.Resume) error
}

// Renderer produces LaTeX source for a resume
type Renderer interface {
	Render(ctx context.Context, req rendering.Request) (string, error)
}

// Compiler turns LaTeX source into PDF bytes
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// Request is one generation call
type Request struct {
	TemplateID string
	Resume     *types.Resume
	Tier       types.Tier
	Locale     string
}

// Service sequences tier check, template resolution, validation, rendering
// and compilation. It holds no per-request state.
type Service struct {
	catalog   Catalog
	validator ContentValidator
	renderer  Renderer
	compiler  Compiler
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService creates a generation service. compiler may be nil for a
// service that only renders LaTeX.
func NewService(catalog Catalog, validator ContentValidator, renderer Renderer, compiler Compiler, logger *zap.Logger) *Service {
	return &Service{
		catalog:   catalog,
		validator: validator,
		renderer:  renderer,
		compiler:  compiler,
		logger:    observability.OrNop(logger),
		tracer:    otel.Tracer(tracerName),
	}
}

// Generate returns the compiled PDF as a stream. Failures are *Error values
// except caller cancellation, which satisfies errors.Is(err, context.Canceled).
func (s *Service) Generate(ctx context.Context, req Request) (io.ReadCloser, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "generation.Generate", trace.WithAttributes(
		attribute.String("template.id", req.TemplateID),
		attribute.String("tier", req.Tier.String()),
		attribute.String("locale", req.Locale),
	))
	defer span.End()

	pdf, err := s.generate(ctx, req)
	s.record(span, start, err)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(pdf)), nil
}

func (s *Service) generate(ctx context.Context, req Request) ([]byte, error) {
	if s.compiler == nil {
		return nil, &Error{Kind: KindCompilationFailed, TemplateID: req.TemplateID, Cause: errors.New("no compiler configured")}
	}

	source, _, err := s.RenderLaTeX(ctx, req)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	err = s.stage(ctx, "generation.compile", func(ctx context.Context) error {
		var compileErr error
		pdf, compileErr = s.compiler.Compile(ctx, source)
		return compileErr
	})
	if err != nil {
		return nil, s.compileError(ctx, req, err)
	}
	return pdf, nil
}

// RenderLaTeX runs every step up to and including rendering and returns the
// LaTeX source with the resolved template.
func (s *Service) RenderLaTeX(ctx context.Context, req Request) (string, types.TemplateMetadata, error) {
	var meta types.TemplateMetadata
	err := s.stage(ctx, "generation.resolve_template", func(ctx context.Context) error {
		var findErr error
		meta, findErr = s.catalog.FindByID(ctx, req.TemplateID)
		return findErr
	})
	if err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			return "", meta, &Error{Kind: KindTemplateNotFound, TemplateID: req.TemplateID, Cause: err}
		}
		return "", meta, s.renderingError(ctx, req, err)
	}

	if !req.Tier.Valid() || !meta.IsAccessibleBy(req.Tier) {
		return "", meta, &Error{
			Kind:         KindTemplateAccessDenied,
			TemplateID:   req.TemplateID,
			RequiredTier: meta.RequiredSubscriptionTier,
			ActualTier:   req.Tier,
		}
	}

	if req.Resume == nil {
		return "", meta, &Error{Kind: KindRenderingError, TemplateID: req.TemplateID, Cause: errors.New("resume is nil")}
	}

	err = s.stage(ctx, "generation.validate", func(context.Context) error {
		return s.validator.Validate(req.Resume)
	})
	if err != nil {
		return "", meta, s.validationError(req, err)
	}

	if req.Locale != "" && !meta.SupportsLocale(req.Locale) {
		s.logger.Info("template does not declare requested locale, rendering with fallback translations",
			zap.String("template_id", meta.ID),
			zap.String("locale", req.Locale),
			zap.Strings("supported_locales", meta.SupportedLocales))
	}

	var source string
	err = s.stage(ctx, "generation.render", func(ctx context.Context) error {
		var renderErr error
		source, renderErr = s.renderer.Render(ctx, rendering.Request{
			TemplatePath: meta.TemplatePath,
			Resume:       req.Resume,
			Locale:       req.Locale,
			Params:       meta.Params,
		})
		return renderErr
	})
	if err != nil {
		var injErr *validation.InjectionError
		if errors.As(err, &injErr) {
			return "", meta, s.validationError(req, err)
		}
		return "", meta, s.renderingError(ctx, req, err)
	}

	return source, meta, nil
}

// stage runs fn in a child span named name
func (s *Service) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Service) validationError(req Request, err error) error {
	genErr := &Error{Kind: KindInjectionDetected, TemplateID: req.TemplateID, Cause: err}
	var injErr *validation.InjectionError
	if errors.As(err, &injErr) {
		genErr.Field = injErr.Field
		genErr.Rule = injErr.Rule
	}
	return genErr
}

func (s *Service) renderingError(ctx context.Context, req Request, err error) error {
	if cancelled(ctx, err) {
		return err
	}
	s.logger.Error("rendering failed",
		zap.String("template_id", req.TemplateID),
		zap.String("locale", req.Locale),
		zap.Error(err))
	return &Error{Kind: KindRenderingError, TemplateID: req.TemplateID, Cause: err}
}

func (s *Service) compileError(ctx context.Context, req Request, err error) error {
	var timeoutErr *compiler.TimeoutError
	if errors.As(err, &timeoutErr) {
		return &Error{Kind: KindCompilationTimeout, TemplateID: req.TemplateID, Cause: err}
	}
	if cancelled(ctx, err) {
		return err
	}
	return &Error{Kind: KindCompilationFailed, TemplateID: req.TemplateID, Cause: err}
}

func cancelled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) && errors.Is(ctx.Err(), context.Canceled)
}

func (s *Service) record(span trace.Span, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		if kind, ok := KindOf(err); ok {
			outcome = string(kind)
		} else if errors.Is(err, context.Canceled) {
			outcome = "cancelled"
		} else {
			outcome = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("outcome", outcome))

	observability.GenerationsTotal.WithLabelValues(outcome).Inc()
	observability.GenerationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
