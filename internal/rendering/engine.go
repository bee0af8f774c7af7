package rendering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/observability"
	"github.com/jonathan/resume-renderer/internal/templates"
	"github.com/jonathan/resume-renderer/internal/types"
)

// EntryPoint is the template every template group must define
const EntryPoint = "resume"

// Template delimiters. LaTeX uses braces everywhere, so the Go defaults
// would collide with ordinary source text.
const (
	LeftDelim  = "<<"
	RightDelim = ">>"
)

// Validator checks resume content before it is rendered
type Validator interface {
	Validate(resume *types.Resume) error
}

// Request is a single render call
type Request struct {
	TemplatePath string
	Resume       *types.Resume
	Locale       string
	// Params are the template descriptor's styling knobs
	Params map[string]any
}

// Engine renders resumes into LaTeX source. Template groups and translation
// bundles are cached for the life of the engine; only bound values are
// per request, so one engine is shared by all callers.
type Engine struct {
	sources      []*templates.Source
	validator    Validator
	groups       *Cache[*template.Template]
	translations *TranslationStore
	now          func() time.Time
	logger       *zap.Logger
}

// EngineOption configures an Engine
type EngineOption func(*engineOptions)

type engineOptions struct {
	defaultLocale string
	now           func() time.Time
}

// WithDefaultLocale sets the locale used when a requested bundle is missing
func WithDefaultLocale(locale string) EngineOption {
	return func(o *engineOptions) { o.defaultLocale = locale }
}

// WithClock overrides the clock used for the "last updated" label
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) { o.now = now }
}

// NewEngine creates a render engine reading templates and bundles from sources
func NewEngine(sources []*templates.Source, validator Validator, logger *zap.Logger, opts ...EngineOption) *Engine {
	o := engineOptions{defaultLocale: DefaultLocale, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger = observability.OrNop(logger)

	return &Engine{
		sources:      sources,
		validator:    validator,
		groups:       NewCache[*template.Template]("template_groups"),
		translations: NewTranslationStore(sources, o.defaultLocale, logger),
		now:          o.now,
		logger:       logger,
	}
}

// Render validates the resume, maps it into a ResumeView and executes the
// template group's entry point. Validation failures are returned unwrapped;
// configuration problems are *TemplateError or *RenderError.
func (e *Engine) Render(ctx context.Context, req Request) (string, error) {
	if req.Resume == nil {
		return "", &RenderError{Message: "resume is nil"}
	}
	if err := e.validator.Validate(req.Resume); err != nil {
		return "", err
	}

	bundle, err := e.translations.Bundle(ctx, req.Locale)
	if err != nil {
		e.logMisconfiguration(err, req)
		return "", err
	}

	tmpl, err := e.group(ctx, req.TemplatePath)
	if err != nil {
		e.logMisconfiguration(err, req)
		return "", err
	}

	data := RenderData{
		Resume:      mapResume(req.Resume, bundle),
		Messages:    bundle.Messages(),
		Locale:      bundle.Resolved,
		LastUpdated: formatLongDate(e.now(), bundle),
		Params:      req.Params,
	}

	var out strings.Builder
	if err := tmpl.ExecuteTemplate(&out, EntryPoint, data); err != nil {
		err = &TemplateError{Path: req.TemplatePath, Message: "failed to execute template", Cause: err}
		e.logMisconfiguration(err, req)
		return "", err
	}

	e.logger.Debug("rendered template",
		zap.String("template_path", req.TemplatePath),
		zap.String("locale", bundle.Resolved),
		zap.Int("bytes", out.Len()))
	return out.String(), nil
}

// Preload parses and caches the template group at path without rendering
func (e *Engine) Preload(ctx context.Context, path string) error {
	_, err := e.group(ctx, path)
	return err
}

func (e *Engine) group(ctx context.Context, path string) (*template.Template, error) {
	return e.groups.GetOrLoad(ctx, path, func(context.Context) (*template.Template, error) {
		return e.loadGroup(path)
	})
}

func (e *Engine) loadGroup(path string) (*template.Template, error) {
	content, src, err := templates.ReadFirst(e.sources, path)
	if err != nil {
		msg := "failed to read template file"
		if errors.Is(err, templates.ErrFileNotFound) {
			msg = "template file not found"
		}
		return nil, &TemplateError{Path: path, Message: msg, Cause: err}
	}

	tmpl, err := ParseGroup(path, string(content))
	if err != nil {
		return nil, err
	}

	e.logger.Info("loaded template group",
		zap.String("template_path", path),
		zap.String("source", src.String()))
	return tmpl, nil
}

// ParseGroup parses LaTeX template source and checks for the entry point.
func ParseGroup(name, content string) (*template.Template, error) {
	tmpl, err := template.New(name).
		Delims(LeftDelim, RightDelim).
		Option("missingkey=error").
		Funcs(funcMap).
		Parse(content)
	if err != nil {
		return nil, &TemplateError{Path: name, Message: "failed to parse template", Cause: err}
	}
	if tmpl.Lookup(EntryPoint) == nil {
		return nil, &TemplateError{
			Path:    name,
			Message: fmt.Sprintf("template %q is not defined", EntryPoint),
			Cause:   ErrMissingEntryPoint,
		}
	}
	return tmpl, nil
}

var funcMap = template.FuncMap{
	"join": func(items []string, sep string) string {
		return strings.Join(items, sep)
	},
	"dict": func(pairs ...any) (map[string]any, error) {
		if len(pairs)%2 != 0 {
			return nil, errors.New("dict requires key/value pairs")
		}
		m := make(map[string]any, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			key, ok := pairs[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
			}
			m[key] = pairs[i+1]
		}
		return m, nil
	},
}

func (e *Engine) logMisconfiguration(err error, req Request) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	e.logger.Error("template rendering misconfigured",
		zap.String("template_path", req.TemplatePath),
		zap.String("locale", req.Locale),
		zap.Error(err))
}
