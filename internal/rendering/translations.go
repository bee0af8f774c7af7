package rendering

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/jonathan/resume-renderer/internal/observability"
	"github.com/jonathan/resume-renderer/internal/templates"
)

// DefaultLocale is the locale whose bundle backs every other bundle
const DefaultLocale = "en"

// Bundle is a resolved set of translated strings for one chain of bundle
// files. A bundle is shared between requests and must not be modified.
type Bundle struct {
	// Resolved is the most specific locale a bundle file was found for
	Resolved string

	raw     map[string]string
	escaped map[string]string
}

// Text returns the unescaped translation for key
func (b *Bundle) Text(key string) string {
	return b.raw[key]
}

// Messages returns the translations escaped for LaTeX, ready for templates
func (b *Bundle) Messages() map[string]string {
	return b.escaped
}

// TranslationStore loads translation bundles from template sources. Bundles
// are cached per chain of existing bundle files, so the cache never holds
// more entries than there are bundle combinations on disk.
type TranslationStore struct {
	sources       []*templates.Source
	defaultLocale string
	logger        *zap.Logger
	cache         *Cache[*Bundle]
	index         *Cache[map[string]bool]
}

// NewTranslationStore creates a store over sources. An empty defaultLocale
// selects DefaultLocale.
func NewTranslationStore(sources []*templates.Source, defaultLocale string, logger *zap.Logger) *TranslationStore {
	key := bundleKey(defaultLocale)
	if key == "" {
		key = DefaultLocale
	}
	return &TranslationStore{
		sources:       sources,
		defaultLocale: key,
		logger:        observability.OrNop(logger),
		cache:         NewCache[*Bundle]("translations"),
		index:         NewCache[map[string]bool]("translation_index"),
	}
}

// BundlePath returns the source-relative path of a locale's bundle file
func BundlePath(locale string) string {
	return "i18n/messages_" + locale + ".yaml"
}

// Bundle returns the bundle for locale. The lookup order is the exact tag
// (es_MX), its base language (es), then the default locale. Bundles found
// along the way are layered so a regional file need only hold overrides.
// Locales that do not parse get the default bundle.
func (s *TranslationStore) Bundle(ctx context.Context, locale string) (*Bundle, error) {
	available, err := s.index.GetOrLoad(ctx, "i18n", func(context.Context) (map[string]bool, error) {
		return s.availableLocales()
	})
	if err != nil {
		return nil, &RenderError{Message: "failed to list translation bundles", Cause: err}
	}

	requested := bundleKey(locale)
	chain := []string{s.defaultLocale}
	candidates := localeCandidates(requested, s.defaultLocale)
	// least specific first, so the exact tag is applied last
	for i := len(candidates) - 1; i >= 0; i-- {
		if available[candidates[i]] {
			chain = append(chain, candidates[i])
		}
	}

	bundle, err := s.cache.GetOrLoad(ctx, strings.Join(chain, ">"), func(context.Context) (*Bundle, error) {
		return s.load(chain)
	})
	if err != nil {
		return nil, err
	}

	if s.isFallback(locale, requested, bundle) {
		observability.TranslationFallbacks.WithLabelValues(bundle.Resolved).Inc()
		s.logger.Warn("no translation bundle for locale, falling back to default",
			zap.String("requested_locale", displayLocale(requested)),
			zap.String("resolved_locale", bundle.Resolved))
	}
	return bundle, nil
}

// isFallback reports whether a non-default request was served by the
// default bundle alone. Regional variants of the default locale are not.
func (s *TranslationStore) isFallback(raw, requested string, bundle *Bundle) bool {
	if strings.TrimSpace(raw) == "" || bundle.Resolved != s.defaultLocale {
		return false
	}
	return requested != s.defaultLocale && !strings.HasPrefix(requested, s.defaultLocale+"_")
}

// load layers the bundles of chain, default locale first
func (s *TranslationStore) load(chain []string) (*Bundle, error) {
	base, err := s.readBundle(chain[0])
	if err != nil {
		if errors.Is(err, templates.ErrFileNotFound) {
			return nil, &RenderError{
				Message: fmt.Sprintf("no translation bundle for default locale %q", chain[0]),
				Cause:   ErrBundleNotFound,
			}
		}
		return nil, &RenderError{Message: "failed to load default translation bundle", Cause: err}
	}

	merged := maps.Clone(base)
	for _, locale := range chain[1:] {
		overlay, err := s.readBundle(locale)
		if err != nil {
			return nil, &RenderError{
				Message: fmt.Sprintf("failed to load translation bundle %q", locale),
				Cause:   err,
			}
		}
		maps.Copy(merged, overlay)
	}

	escaped := make(map[string]string, len(merged))
	for k, v := range merged {
		escaped[k] = EscapeLaTeX(v)
	}

	return &Bundle{
		Resolved: chain[len(chain)-1],
		raw:      merged,
		escaped:  escaped,
	}, nil
}

// availableLocales lists the locales that have a bundle file in any source
func (s *TranslationStore) availableLocales() (map[string]bool, error) {
	available := make(map[string]bool)
	for _, src := range s.sources {
		entries, err := fs.ReadDir(src.FS(), "i18n")
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading i18n from %s: %w", src, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, "messages_") || !strings.HasSuffix(name, ".yaml") {
				continue
			}
			available[strings.TrimSuffix(strings.TrimPrefix(name, "messages_"), ".yaml")] = true
		}
	}
	return available, nil
}

func (s *TranslationStore) readBundle(locale string) (map[string]string, error) {
	data, src, err := templates.ReadFirst(s.sources, BundlePath(locale))
	if err != nil {
		return nil, err
	}
	var messages map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parsing %s from %s: %w", BundlePath(locale), src, err)
	}
	return messages, nil
}

// bundleKey canonicalises a locale to the bundle file naming scheme
// ("es-mx" -> "es_MX"), keeping only language, script and region.
// Unparseable locales yield "".
func bundleKey(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return ""
	}
	base, script, region := tag.Raw()
	parts := []string{base.String()}
	if s := script.String(); s != "Zzzz" {
		parts = append(parts, s)
	}
	if r := region.String(); r != "ZZ" {
		parts = append(parts, r)
	}
	return strings.Join(parts, "_")
}

// displayLocale is the log form of a canonical key
func displayLocale(key string) string {
	if key == "" {
		return "invalid"
	}
	return key
}

// localeCandidates lists bundle keys to try for requested, most specific
// first, excluding the default locale.
func localeCandidates(requested, defaultLocale string) []string {
	if requested == "" {
		return nil
	}
	var candidates []string
	add := func(c string) {
		if c == "" || c == defaultLocale || slices.Contains(candidates, c) {
			return
		}
		candidates = append(candidates, c)
	}

	add(requested)
	base, _, _ := strings.Cut(requested, "_")
	add(base)
	return candidates
}
