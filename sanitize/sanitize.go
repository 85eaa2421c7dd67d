// Package sanitize implements C13: a defensive preprocessing pipeline for
// free-form search input, grounded on the teacher's own query-parsing
// discipline (reject-early, normalize, then tokenize) but generalized
// from zoekt's structured query grammar to plain-string sanitization
// ahead of the trigram/primary/symbol indices. Regex matching uses
// github.com/grafana/regexp, the teacher's own drop-in stdlib
// replacement, throughout.
package sanitize

import (
	"strings"
	"unicode"

	"github.com/grafana/regexp"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// MaxInputLength is the hard input-length ceiling, step 1 of the
// pipeline.
const MaxInputLength = 1024

// MaxTermLength and MaxTerms bound the extracted token list, step 8.
const (
	MaxTermLength = 100
	MaxTerms      = 50
)

// Result is the sanitiser's output: the cleaned string, its extracted
// terms, whether anything was changed, and any warnings raised along
// the way.
type Result struct {
	Sanitized string
	Terms     []string
	Modified  bool
	Warnings  []string
}

var (
	sqlShapePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bunion\s+select\b`),
		regexp.MustCompile(`(?i)\bselect\b.*\bfrom\b`),
		regexp.MustCompile(`(?i)\binsert\s+into\b`),
		regexp.MustCompile(`(?i)\bupdate\b.*\bset\b`),
		regexp.MustCompile(`(?i)\bdelete\s+from\b`),
		regexp.MustCompile(`(?i)\bdrop\s+table\b`),
		regexp.MustCompile(`(?i)\bcreate\s+table\b`),
		regexp.MustCompile(`(?i)\balter\s+table\b`),
		regexp.MustCompile(`(?i)</?(script|iframe|object|embed)[^>]*>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)\bon\w+\s*=`),
		regexp.MustCompile(`(?i);\s*(drop|alter|create|truncate)\b`),
	}

	// Shell metacharacter sequences only; bare parentheses and dollar
	// signs survive to the LDAP and reserved-character stages, which
	// preserve single ( ) = *.
	cmdInjectionChars = regexp.MustCompile("(?i)\\|\\||&&|[|;`]|\\$\\(|<\\(|>\\(|\\$\\{|%0a|%0d|%00")

	pathTraversalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.\./`),
		regexp.MustCompile(`\.\.\\`),
		regexp.MustCompile(`(?i)\.\.%2f`),
		regexp.MustCompile(`(?i)\.\.%5c`),
		regexp.MustCompile(`(?i)%2e%2e%2f`),
		regexp.MustCompile(`(?i)%2e%2e%5c`),
	}

	ldapShapePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\(\)`),
		regexp.MustCompile(`\\\\`),
		regexp.MustCompile(`,\s*\w+\s*=`),
		regexp.MustCompile(`=\s*\w+\s*,`),
	}

	reservedChars = regexp.MustCompile(`[<>&"'\x00\r\n\t]`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Sanitize runs the general (non-path-aware) pipeline over input.
func Sanitize(input string) (Result, error) {
	return run(input, false)
}

// SanitizePathAware runs the path-aware variant: it skips
// command-injection stripping when "/" is present and preserves
// "/ * ( ) [ ] = , - _".
func SanitizePathAware(input string) (Result, error) {
	return run(input, true)
}

func run(input string, pathAware bool) (Result, error) {
	original := input
	var warnings []string

	if len(input) > MaxInputLength {
		return Result{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "query", "input exceeds maximum length")
	}
	if strings.ContainsRune(input, 0) {
		return Result{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "query", "input contains null byte")
	}

	s := mapControlToSpace(input)
	s = collapseWhitespace(s)

	skipCmdInjection := pathAware && strings.Contains(s, "/")

	for _, p := range sqlShapePatterns {
		s = p.ReplaceAllString(s, " ")
	}
	if !skipCmdInjection {
		s = cmdInjectionChars.ReplaceAllString(s, " ")
	}
	for _, p := range pathTraversalPatterns {
		s = p.ReplaceAllString(s, " ")
	}
	for _, p := range ldapShapePatterns {
		s = p.ReplaceAllString(s, " ")
	}
	s = stripReservedChars(s, pathAware)
	s = collapseWhitespace(s)

	terms, wildcardWhole := extractTerms(s, pathAware)
	if wildcardWhole {
		warnings = append(warnings, "wildcard query preserved verbatim")
	}

	modified := s != original
	if strings.TrimSpace(original) != "" && strings.TrimSpace(s) == "" {
		return Result{}, kotaerr.Field(kotaerr.ValidationInvalidInput, "query", "sanitization of non-empty input produced empty output")
	}

	return Result{Sanitized: s, Terms: terms, Modified: modified, Warnings: warnings}, nil
}

func mapControlToSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r != ' ' && unicode.IsControl(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// preservedPathChars are not stripped as "reserved" under the path-aware
// variant, per spec step 10.
const preservedPathChars = `/*()[]=,-_`

func stripReservedChars(s string, pathAware bool) string {
	if !pathAware {
		return reservedChars.ReplaceAllString(s, " ")
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(preservedPathChars, r) {
			b.WriteRune(r)
			continue
		}
		if reservedChars.MatchString(string(r)) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// extractTerms splits s on whitespace into terms, keeping only those
// with length <= MaxTermLength that contain an alphanumeric character or a
// "*", up to MaxTerms. The standalone wildcard "*" is always preserved.
func extractTerms(s string, pathAware bool) (terms []string, isWildcard bool) {
	if strings.TrimSpace(s) == "*" {
		return []string{"*"}, true
	}
	for _, word := range strings.Fields(s) {
		if len(word) > MaxTermLength {
			continue
		}
		if !strings.Contains(word, "*") && !hasAlphanumeric(word) {
			continue
		}
		terms = append(terms, word)
		if len(terms) >= MaxTerms {
			break
		}
	}
	return terms, false
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
