package validation

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/observability"
	"github.com/jonathan/resume-renderer/internal/types"
)

// Rule is a named deny-list pattern
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// endOfControlWord matches where TeX ends a control word: at the first
// non-letter or at end of input. It keeps "\writer" from matching "\write"
// while still catching "\write18" and "\input{".
const endOfControlWord = `(?:[^A-Za-z]|$)`

func controlWords(words string) *regexp.Regexp {
	return regexp.MustCompile(`\\(?:` + words + `)` + endOfControlWord)
}

// DefaultRules is the built-in deny-list of LaTeX constructs that can change
// document-level behaviour, touch the filesystem or reach a shell.
var DefaultRules = []Rule{
	{
		Name:    "document-class",
		Pattern: controlWords(`documentclass|documentstyle|NeedsTeXFormat|ProvidesPackage|ProvidesClass|LoadClass`),
	},
	{
		Name:    "document-structure",
		Pattern: regexp.MustCompile(`\\(?:begin|end)\s*\{\s*document\s*\}|\\(?:end|endinput|dump|batchmode|nonstopmode|scrollmode|errorstopmode|stop)` + endOfControlWord),
	},
	{
		Name:    "file-inclusion",
		Pattern: controlWords(`input|include|includeonly|InputIfFileExists|IfFileExists|lstinputlisting|verbatiminput|inputminted|includegraphics|includepdf|import|subimport|openin|closein|read|readline|newread|pdffiledump|pdfximage`),
	},
	{
		Name:    "file-write",
		Pattern: controlWords(`write|immediate|openout|closeout|newwrite|message|typeout|wlog`),
	},
	{
		Name:    "shell-escape",
		Pattern: controlWords(`ShellEscape|directlua|latelua|luaexec|luadirect|luacode|pdfshellescape|shellescape|system`),
	},
	{
		Name:    "macro-definition",
		Pattern: controlWords(`def|gdef|edef|xdef|let|futurelet|newcommand|renewcommand|providecommand|DeclareRobustCommand|DeclareTextCommand|newenvironment|renewenvironment|NewDocumentCommand|RenewDocumentCommand|newtoks|newcount|chardef|mathchardef|countdef|toksdef|global|long|outer`),
	},
	{
		Name:    "catcode-manipulation",
		Pattern: controlWords(`catcode|uccode|lccode|sfcode|mathcode|delcode|makeatletter|makeatother|csname|endcsname|expandafter|noexpand|scantokens|everyeof|everypar|everyjob|everymath|everydisplay|afterassignment|aftergroup|uppercase|lowercase|string|meaning|detokenize`),
	},
	{
		Name:    "package-loading",
		Pattern: controlWords(`usepackage|RequirePackage|usetikzlibrary|special|pdfliteral|pdfobj|pdfcatalog|pdfinfo`),
	},
	{
		// ^^5c is a backslash in TeX's hex notation; ^^M and friends are control characters
		Name:    "tex-char-notation",
		Pattern: regexp.MustCompile(`\^\^(?:[0-9a-f]{2}|[\x40-\x7f?])`),
	},
}

// ContentValidator checks every free-text field of a resume against a
// deny-list of structural injection patterns. It rejects rather than
// sanitizes. It holds no per-request state and is safe for concurrent use.
type ContentValidator struct {
	rules  []Rule
	logger *zap.Logger
}

// NewContentValidator builds a validator from DefaultRules plus any extra
// patterns (Go regexp syntax). Extra patterns are reported under the rule
// name "custom-<n>".
func NewContentValidator(logger *zap.Logger, extraPatterns ...string) (*ContentValidator, error) {
	rules := make([]Rule, 0, len(DefaultRules)+len(extraPatterns))
	rules = append(rules, DefaultRules...)
	for i, pattern := range extraPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &Error{
				Message: fmt.Sprintf("invalid extra injection pattern #%d", i+1),
				Cause:   err,
			}
		}
		rules = append(rules, Rule{Name: fmt.Sprintf("custom-%d", i+1), Pattern: re})
	}

	return &ContentValidator{
		rules:  rules,
		logger: observability.OrNop(logger),
	}, nil
}

// Validate returns an *InjectionError for the first field matching a rule.
func (v *ContentValidator) Validate(resume *types.Resume) error {
	if resume == nil {
		return &Error{Message: "resume is nil"}
	}

	for _, field := range resume.TextFields() {
		if rule, ok := v.match(field.Value); ok {
			observability.InjectionRejections.WithLabelValues(rule).Inc()
			v.logger.Warn("rejected resume content matching injection rule",
				zap.String("field", field.Path),
				zap.String("rule", rule))
			return &InjectionError{Field: field.Path, Rule: rule}
		}
	}

	return nil
}

// CheckText reports the name of the first rule text matches, if any.
func (v *ContentValidator) CheckText(text string) (string, bool) {
	return v.match(text)
}

func (v *ContentValidator) match(text string) (string, bool) {
	for _, rule := range v.rules {
		if rule.Pattern.MatchString(text) {
			return rule.Name, true
		}
	}
	return "", false
}
