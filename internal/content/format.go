package content

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxMatches bounds how many matches a single pass converts, so that
// adversarial input cannot make formatting arbitrarily expensive.
const MaxMatches = 250

var (
	urlRegex = regexp.MustCompile(`(?im)(` +
		`(?:(?:[a-z]+)://)` +
		`(?:\S+(?::\S*)?@)?` +
		`(?:` +
		`([01][0-9][0-9]|2[0-4][0-9]|25[0-5])` +
		`|` +
		`(?:(?:[a-z\x{00a1}-\x{ffff}0-9]-*)*[a-z\x{00a1}-\x{ffff}0-9]+)` +
		`(?:\.(?:[a-z\x{00a1}-\x{ffff}0-9]-*)*[a-z\x{00a1}-\x{ffff}0-9]+)*` +
		`(?:\.(?:[a-z\x{00a1}-\x{ffff}]{2,}))` +
		`\.?` +
		`)` +
		`(?::\d{2,5})?` +
		`(?:[/?#]([^,<>()\[\] \t\r\n]|(<[^:\s]*?>|\([^:\s]*?\)|\[[^:\s]*?\]))*)?` +
		`)\.?`)

	offRecordRegex = regexp.MustCompile(`^\s*\[off\]\s*`)
)

type stylePass struct {
	re    *regexp.Regexp
	style Style
	// Underscore markers must not touch word characters, so snake_case
	// identifiers are left alone.
	wordBounded bool
}

// Order matters: double markers must run before their single variants.
var stylePasses = []stylePass{
	{re: regexp.MustCompile(`__(\S(?:.*?\S)?)__`), style: StyleBold, wordBounded: true},
	{re: regexp.MustCompile(`_(\S(?:.*?\S)?)_`), style: StyleItalic, wordBounded: true},
	{re: regexp.MustCompile(`\*\*(\S(?:.*?\S)?)\*\*`), style: StyleBold},
	{re: regexp.MustCompile(`\*(\S(?:.*?\S)?)\*`), style: StyleItalic},
	{re: regexp.MustCompile("`([^`]+)`"), style: StyleCode},
}

// Format runs the complete pipeline over a message body: links first, then
// the emphasis and code passes. Pathological input degrades to literal text.
func Format(text string) (segs []Segment) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("message formatting failed, showing literal text", "panic", r)
			segs = []Segment{Text(text)}
		}
	}()

	return FixupFormatting(FixupURLs(text))
}

// FixupURLs splits text into plain text and Link segments. Only the first
// MaxMatches links are converted; the remainder stays literal.
func FixupURLs(text string) []Segment {
	budget := MaxMatches
	return compact(linkify(text, &budget))
}

// FixupFormatting applies the emphasis and code passes, in order, to the
// plain-text leaves of segs.
func FixupFormatting(segs []Segment) []Segment {
	for _, p := range stylePasses {
		budget := MaxMatches
		segs = compact(transformText(segs, &budget, p.apply))
	}
	return segs
}

func linkify(text string, budget *int) []Segment {
	var out []Segment
	for *budget > 0 {
		loc := urlRegex.FindStringSubmatchIndex(text)
		if loc == nil {
			break
		}
		*budget--

		start, end := loc[2], loc[3]
		if start > 0 {
			out = append(out, Text(text[:start]))
		}
		out = append(out, Link{URL: text[start:end]})
		text = text[end:]
	}
	return append(out, Text(text))
}

func (p stylePass) apply(text string, budget *int) []Segment {
	var out []Segment
	pos, search := 0, 0
	for *budget > 0 && search < len(text) {
		loc := p.re.FindStringSubmatchIndex(text[search:])
		if loc == nil {
			break
		}
		start, end := search+loc[0], search+loc[1]
		if p.wordBounded && !bounded(text, start, end) {
			_, size := utf8.DecodeRuneInString(text[start:])
			search = start + size
			continue
		}
		*budget--

		if start > pos {
			out = append(out, Text(text[pos:start]))
		}
		inner := text[search+loc[2] : search+loc[3]]
		out = append(out, Styled{Style: p.style, Children: []Segment{Text(inner)}})
		pos, search = end, end
	}
	return append(out, Text(text[pos:]))
}

func bounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ActionText reports whether msg is an action ("/me waves") and returns the
// text without the prefix.
func ActionText(msg string) (string, bool) {
	return strings.CutPrefix(msg, "/me ")
}

// IsOffRecord reports whether msg starts with an [off] marker.
func IsOffRecord(msg string) bool {
	return offRecordRegex.MatchString(msg)
}

// MentionPattern matches "@login" ending on a word boundary, so "@bob2" is
// not a mention of "bob".
func MentionPattern(login string) *regexp.Regexp {
	if login == "" {
		return nil
	}
	return regexp.MustCompile("@" + regexp.QuoteMeta(login) + `\b`)
}

// Mentions reports whether text mentions login.
func Mentions(text, login string) bool {
	re := MentionPattern(login)
	return re != nil && re.MatchString(text)
}
