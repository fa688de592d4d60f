// Package sanitize validates and normalizes user-selected text before it is
// allowed anywhere near a paid provider API. Every rejection is an expected,
// recoverable outcome carried as a reason code, never an error or panic.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// HardByteCeiling rejects pathological payloads before any other work runs,
// independent of the configured selection maximum.
const HardByteCeiling = 20 * 1024

// maxDecodePasses bounds entity decoding. Legitimate text stabilizes in one
// or two passes; anything still changing after this many is nested encoding.
const maxDecodePasses = 8

// Reason identifies why a selection was rejected.
type Reason string

const (
	ReasonTooShort         Reason = "too-short"
	ReasonTooLong          Reason = "too-long"
	ReasonWordCount        Reason = "word-count"
	ReasonDangerousPattern Reason = "dangerous-pattern"
	ReasonBlockedWord      Reason = "blocked-word"
)

// Limits carries the per-request validation configuration.
type Limits struct {
	MinChars int
	MaxChars int
	MinWords int
	MaxWords int

	BlockedWords              []string
	BlockedWordsCaseSensitive bool
	BlockedWordsWholeWordOnly bool
}

// Result is a tagged outcome: either OK with the normalized text, or a
// rejection with its reason. Only this package constructs the sanitized text.
type Result struct {
	OK          bool
	Text        string
	Reason      Reason
	BlockedTerm string
}

func rejected(reason Reason) Result {
	return Result{Reason: reason}
}

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	markupTags   = regexp.MustCompile(`<[^>]*>`)
	whitespace   = regexp.MustCompile(`\s+`)

	// Patterns are matched against the fully decoded text so entity-encoded
	// payloads cannot slip through.
	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)<\s*iframe`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)vbscript\s*:`),
		regexp.MustCompile(`(?i)\bon(click|load|error|mouseover|focus|blur|submit|change|input|keydown|keyup)\s*=`),
		regexp.MustCompile(`(?i)\b(eval|exec|system|passthru|shell_exec)\s*\(`),
		regexp.MustCompile(`(?i)document\s*\.\s*(cookie|write|location)`),
		regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`),
		regexp.MustCompile(`(?i)\b(drop|truncate)\s+table\b`),
		regexp.MustCompile(`(?i)\b(insert\s+into|delete\s+from)\b`),
		regexp.MustCompile(`(?i)data:[^,]{0,64}base64`),
	}

	percentEncoding = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
	numericCharRef  = regexp.MustCompile(`&#x?[0-9A-Fa-f]+;?`)
)

// Sanitize runs the validation pipeline in order, short-circuiting on the
// first failure. On success the returned text is a fixed point: running
// Sanitize on it again yields the same text.
func Sanitize(raw string, limits Limits) Result {
	// 1. DoS guard on the raw bytes.
	if len(raw) > HardByteCeiling {
		return rejected(ReasonTooLong)
	}

	// 2a. Drop control characters and decode entities until the text is
	// stable, so double-encoded payloads (&amp;lt;script&amp;gt;) cannot
	// outlast a single pass. Tags stay in place for now so the
	// dangerous-pattern check sees them, whether they arrived literally or
	// entity-encoded.
	decoded := controlChars.ReplaceAllString(raw, "")
	for pass := 0; ; pass++ {
		next := html.UnescapeString(decoded)
		if next == decoded {
			break
		}
		if pass == maxDecodePasses {
			return rejected(ReasonDangerousPattern)
		}
		decoded = next
	}

	// 3. Dangerous content in the decoded text.
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(decoded) {
			return rejected(ReasonDangerousPattern)
		}
	}

	// 2b. Finish normalizing: strip markup, collapse whitespace runs, trim.
	text := markupTags.ReplaceAllString(decoded, " ")
	text = whitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	// 4. Configured length and word-count bounds.
	length := len([]rune(text))
	if length < limits.MinChars {
		return rejected(ReasonTooShort)
	}
	if limits.MaxChars > 0 && length > limits.MaxChars {
		return rejected(ReasonTooLong)
	}
	words := len(strings.Fields(text))
	if words < limits.MinWords || (limits.MaxWords > 0 && words > limits.MaxWords) {
		return rejected(ReasonWordCount)
	}

	// 5. Encoding-smuggling guards: excessive special characters, leftover
	// percent-encoding, or character references that somehow survived the
	// decode loop.
	if specialCharDensity(text) > 0.30 {
		return rejected(ReasonDangerousPattern)
	}
	if percentEncoding.MatchString(text) || numericCharRef.MatchString(text) {
		return rejected(ReasonDangerousPattern)
	}

	// 6. Blocked terms.
	if term, hit := matchBlockedWord(text, limits); hit {
		return Result{Reason: ReasonBlockedWord, BlockedTerm: term}
	}

	return Result{OK: true, Text: text}
}

func specialCharDensity(text string) float64 {
	if text == "" {
		return 0
	}
	var special, total int
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	return float64(special) / float64(total)
}

// matchBlockedWord reports the first configured term found in the text,
// honoring the case-sensitivity and whole-word flags.
func matchBlockedWord(text string, limits Limits) (string, bool) {
	for _, word := range limits.BlockedWords {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}

		if limits.BlockedWordsWholeWordOnly {
			expr := `\b` + regexp.QuoteMeta(word) + `\b`
			if !limits.BlockedWordsCaseSensitive {
				expr = `(?i)` + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				continue
			}
			if re.MatchString(text) {
				return word, true
			}
			continue
		}

		haystack, needle := text, word
		if !limits.BlockedWordsCaseSensitive {
			haystack = strings.ToLower(haystack)
			needle = strings.ToLower(needle)
		}
		if strings.Contains(haystack, needle) {
			return word, true
		}
	}
	return "", false
}
