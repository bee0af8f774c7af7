package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/compiler"
	"github.com/jonathan/resume-renderer/internal/config"
	"github.com/jonathan/resume-renderer/internal/generation"
	"github.com/jonathan/resume-renderer/internal/rendering"
	"github.com/jonathan/resume-renderer/internal/templates"
	"github.com/jonathan/resume-renderer/internal/validation"
)

// components holds everything up to (not including) the sandbox compiler
type components struct {
	sources   []*templates.Source
	catalog   *templates.Catalog
	validator *validation.ContentValidator
	engine    *rendering.Engine
}

func buildComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	sources, err := templates.ParseSources(cfg.Templates.Sources)
	if err != nil {
		return nil, fmt.Errorf("invalid template sources: %w", err)
	}

	validator, err := validation.NewContentValidator(logger, cfg.Security.ExtraPatterns...)
	if err != nil {
		return nil, err
	}

	return &components{
		sources:   sources,
		catalog:   templates.NewCatalog(sources, logger, templates.WithDefaultLimit(cfg.Templates.ListLimit)),
		validator: validator,
		engine:    rendering.NewEngine(sources, validator, logger, rendering.WithDefaultLocale(cfg.Templates.DefaultLocale)),
	}, nil
}

// newPDFCompiler builds the sandbox compiler. Tests replace it.
var newPDFCompiler = func(cfg *config.Config, logger *zap.Logger) (generation.Compiler, io.Closer, error) {
	compilerCfg, err := cfg.Sandbox.CompilerConfig()
	if err != nil {
		return nil, nil, err
	}

	engine, err := compiler.NewDockerEngine(cfg.Sandbox.DockerHost, cfg.Sandbox.APIVersion)
	if err != nil {
		return nil, nil, err
	}

	c, err := compiler.New(engine, compilerCfg, logger)
	if err != nil {
		_ = engine.Close()
		return nil, nil, err
	}
	return c, engine, nil
}

// newContainerLister builds the engine the sweeper and health check use. Tests replace it.
var newContainerLister = func(cfg *config.Config) (sandboxEngine, error) {
	engine, err := compiler.NewDockerEngine(cfg.Sandbox.DockerHost, cfg.Sandbox.APIVersion)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// sandboxEngine is what the operator-side commands need from the container engine
type sandboxEngine interface {
	compiler.ContainerLister
	ImageExists(ctx context.Context, ref string) (bool, error)
	Close() error
}

// writeOutput writes data to path, creating parent directories, or to w when
// path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// cliError is a generation failure rendered for a terminal user
type cliError struct {
	err *generation.Error
}

func (e *cliError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.err.Kind, e.err.PublicMessage())
	if e.err.Kind == generation.KindInjectionDetected && e.err.Rule != "" {
		msg += fmt.Sprintf(" (rule: %s)", e.err.Rule)
	}
	return msg
}

func (e *cliError) Unwrap() error {
	return e.err
}

// publicError replaces a classified generation error with its client-safe
// form; operator detail has already been logged by the service.
func publicError(err error) error {
	var genErr *generation.Error
	if errors.As(err, &genErr) {
		return &cliError{err: genErr}
	}
	return err
}

// Exit codes per failure class
const (
	exitError     = 1
	exitClient    = 2
	exitTransient = 3
)

func exitCode(err error) int {
	kind, ok := generation.KindOf(err)
	if !ok {
		return exitError
	}
	switch kind {
	case generation.KindTemplateNotFound, generation.KindTemplateAccessDenied, generation.KindInjectionDetected:
		return exitClient
	case generation.KindCompilationTimeout:
		return exitTransient
	default:
		return exitError
	}
}
