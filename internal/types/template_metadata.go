package types

import "strings"

// TemplateMetadata describes one document template: its identity, locale
// support, tier requirement and where its source lives. Values are loaded once
// per catalog refresh and never mutated afterwards.
type TemplateMetadata struct {
	ID                       string         `json:"id"`
	Name                     string         `json:"name"`
	Version                  string         `json:"version"`
	TemplatePath             string         `json:"template_path"`
	RequiredSubscriptionTier Tier           `json:"required_subscription_tier"`
	SupportedLocales         []string       `json:"supported_locales,omitempty"`
	PreviewURL               string         `json:"preview_url,omitempty"`
	Params                   map[string]any `json:"params,omitempty"`

	// Source names the template source the descriptor was loaded from
	Source string `json:"source"`
}

// IsAccessibleBy reports whether a caller on the given tier may use this template.
func (m TemplateMetadata) IsAccessibleBy(tier Tier) bool {
	return tier.Covers(m.RequiredSubscriptionTier)
}

// SupportsLocale reports whether the template declares support for locale.
// An empty SupportedLocales set means every locale is supported. Matching is
// case-insensitive and treats "-" and "_" as equivalent; a declared base
// language ("es") also covers its regional variants ("es-MX").
func (m TemplateMetadata) SupportsLocale(locale string) bool {
	if len(m.SupportedLocales) == 0 {
		return true
	}
	want := normalizeLocale(locale)
	for _, l := range m.SupportedLocales {
		have := normalizeLocale(l)
		if have == want || strings.HasPrefix(want, have+"_") {
			return true
		}
	}
	return false
}

func normalizeLocale(l string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(l), "-", "_"))
}
