package templates

import (
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/types"
)

// DescriptorFileName is the descriptor file name inside each template directory
const DescriptorFileName = "template.yaml"

// maxDescriptorSize limits descriptor input to keep a bad file from exhausting memory
const maxDescriptorSize = 64 << 10

// descriptor is the on-disk YAML shape of a template descriptor
type descriptor struct {
	ID                       string         `yaml:"id" validate:"required,max=64,excludesall= /\\"`
	Name                     string         `yaml:"name"`
	Version                  string         `yaml:"version"`
	TemplatePath             string         `yaml:"templatePath" validate:"required"`
	RequiredSubscriptionTier string         `yaml:"requiredSubscriptionTier"`
	SupportedLocales         []string       `yaml:"supportedLocales"`
	PreviewURL               string         `yaml:"previewUrl" validate:"omitempty,url"`
	Params                   map[string]any `yaml:"params"`
}

var descriptorValidator = validator.New()

// parseDescriptor parses and validates one descriptor file. An absent,
// unknown or malformed requiredSubscriptionTier never fails parsing: it
// defaults to FREE and is logged.
func parseDescriptor(data []byte, src *Source, filePath string, logger *zap.Logger) (types.TemplateMetadata, error) {
	if len(data) > maxDescriptorSize {
		return types.TemplateMetadata{}, &DescriptorError{
			Source:  src.String(),
			Path:    filePath,
			Message: "descriptor exceeds maximum size",
		}
	}

	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return types.TemplateMetadata{}, &DescriptorError{
			Source:  src.String(),
			Path:    filePath,
			Message: "malformed YAML",
			Cause:   err,
		}
	}

	d.ID = strings.TrimSpace(d.ID)
	d.TemplatePath = strings.TrimSpace(d.TemplatePath)
	if err := descriptorValidator.Struct(d); err != nil {
		return types.TemplateMetadata{}, &DescriptorError{
			Source:  src.String(),
			Path:    filePath,
			Message: "invalid descriptor",
			Cause:   err,
		}
	}
	if !fs.ValidPath(d.TemplatePath) {
		return types.TemplateMetadata{}, &DescriptorError{
			Source:  src.String(),
			Path:    filePath,
			Message: "templatePath must be a relative slash-separated path inside the source",
			Cause:   ErrInvalidPath,
		}
	}

	tier := types.TierFree
	if raw := strings.TrimSpace(d.RequiredSubscriptionTier); raw == "" {
		logger.Debug("template declares no subscription tier, defaulting to FREE",
			zap.String("template_id", d.ID),
			zap.String("source", src.String()))
	} else if parsed, err := types.ParseTier(raw); err != nil {
		logger.Warn("unrecognized subscription tier in template descriptor, defaulting to FREE",
			zap.String("template_id", d.ID),
			zap.String("source", src.String()),
			zap.String("descriptor", filePath),
			zap.String("raw_tier", raw))
	} else {
		tier = parsed
	}

	return types.TemplateMetadata{
		ID:                       d.ID,
		Name:                     d.Name,
		Version:                  d.Version,
		TemplatePath:             d.TemplatePath,
		RequiredSubscriptionTier: tier,
		SupportedLocales:         d.SupportedLocales,
		PreviewURL:               d.PreviewURL,
		Params:                   d.Params,
		Source:                   src.String(),
	}, nil
}

// loadDescriptors reads every "<dir>/template.yaml" of a source. Descriptors
// that fail to parse are logged at error level and skipped.
func loadDescriptors(src *Source, logger *zap.Logger) ([]types.TemplateMetadata, error) {
	matches, err := fs.Glob(src.FS(), "*/"+DescriptorFileName)
	if err != nil {
		return nil, err
	}

	result := make([]types.TemplateMetadata, 0, len(matches))
	for _, match := range matches {
		data, err := src.ReadFile(match)
		if err != nil {
			logger.Error("failed to read template descriptor",
				zap.String("source", src.String()),
				zap.String("descriptor", match),
				zap.Error(err))
			continue
		}

		meta, err := parseDescriptor(data, src, match, logger)
		if err != nil {
			logger.Error("skipping template descriptor", zap.Error(err))
			continue
		}
		result = append(result, meta)
	}

	return result, nil
}
