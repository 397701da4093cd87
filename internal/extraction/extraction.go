// Package extraction pulls identifiers and names out of free-form chat text.
// Every function is pure and safe for concurrent use.
package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

var (
	dniPattern        = regexp.MustCompile(`\b\d{8}\b`)
	phoneTokenPattern = regexp.MustCompile(`^\+?(?:51)?9\d{8}$`)
	phoneTextPattern  = regexp.MustCompile(`(?:^|\D)(\+?(?:51)?9\d{8})(?:\D|$)`)
	namePattern       = regexp.MustCompile(`(?i)(?:^|\s)(?:soy|me llamo|mi nombre es)\s+(\p{L}+)`)
	preferredPattern  = regexp.MustCompile(`(?i)(?:^|\s)(?:ll[aá]mame|puedes llamarme|prefiero que me (?:digas|llames))\s+(\p{L}+)`)
	dimePattern       = regexp.MustCompile(`(?i)(?:^|\s)dime\s+(\p{L}+)`)
	phoneSeparators   = strings.NewReplacer("-", "", ".", "", "(", "", ")", "")
)

// Words that follow "soy" or "dime" without being a name ("soy cliente",
// "dime cuánto debo"). Keys are folded.
var notNames = map[string]struct{}{
	"cliente": {}, "el": {}, "la": {}, "un": {}, "una": {}, "de": {}, "del": {},
	"yo": {}, "nuevo": {}, "nueva": {}, "titular": {}, "por": {},
	"cuanto": {}, "cuanta": {}, "que": {}, "como": {}, "cuando": {}, "donde": {},
	"cual": {}, "si": {}, "mi": {}, "tu": {}, "algo": {}, "porfa": {}, "hola": {},
}

func isNotName(word string) bool {
	_, skip := notNames[strings.TrimSpace(Fold(word))]
	return skip
}

// ExtractDNI returns the first standalone 8-digit token, or "".
// Tokens of any other length are rejected, even when adjacent to digits.
func ExtractDNI(text string) string {
	return dniPattern.FindString(text)
}

// ExtractPhone returns a normalized 9-digit mobile number found in text, or "".
// Each whitespace-separated token is tried first so a DNI typed next to a
// phone number does not merge with it; then the whitespace-free text is tried
// to catch numbers typed in groups ("987 654 321").
func ExtractPhone(text string) string {
	for _, tok := range strings.Fields(text) {
		tok = phoneSeparators.Replace(strings.Trim(tok, ",;:!?"))
		if phoneTokenPattern.MatchString(tok) {
			if p := NormalizePhone(tok); p != "" {
				return p
			}
		}
	}

	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	compact = phoneSeparators.Replace(compact)
	if m := phoneTextPattern.FindStringSubmatch(compact); m != nil {
		return NormalizePhone(m[1])
	}
	return ""
}

// NormalizePhone strips everything but digits, drops a leading 51 country
// code and keeps the last 9 digits. The result must start with 9, otherwise
// "" is returned. NormalizePhone is idempotent.
func NormalizePhone(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	if len(digits) >= 11 && strings.HasPrefix(digits, "51") {
		digits = digits[2:]
	}
	if len(digits) > 9 {
		digits = digits[len(digits)-9:]
	}
	if len(digits) != 9 || digits[0] != '9' {
		return ""
	}
	return digits
}

// ExtractName prefers the first token of the platform contact name and falls
// back to self-introductions in the message ("soy Ana", "me llamo Ana").
func ExtractName(text, contactName string) string {
	if fields := strings.Fields(contactName); len(fields) > 0 {
		if first := strings.TrimFunc(fields[0], func(r rune) bool { return !unicode.IsLetter(r) }); first != "" {
			return TitleWord(first)
		}
	}

	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if isNotName(m[1]) {
		return ""
	}
	return TitleWord(m[1])
}

// ExtractPreferredName detects an explicit request to be addressed by a
// different name ("llámame Beto"). "dime X" also opens everyday questions,
// so it only counts when X is capitalized and not a question word.
func ExtractPreferredName(text string) string {
	if m := preferredPattern.FindStringSubmatch(text); m != nil {
		if isNotName(m[1]) {
			return ""
		}
		return TitleWord(m[1])
	}
	if m := dimePattern.FindStringSubmatch(text); m != nil {
		if first, _ := utf8.DecodeRuneInString(m[1]); unicode.IsUpper(first) && !isNotName(m[1]) {
			return TitleWord(m[1])
		}
	}
	return ""
}

// LooksLikeIdentifier reports messages that consist only of a digit run of
// plausible identifier length, typed with optional spaces, dashes or a plus.
// It says nothing about validity.
func LooksLikeIdentifier(text string) bool {
	n := 0
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			n++
		case unicode.IsSpace(r), r == '-', r == '+', r == '.':
		default:
			return false
		}
	}
	return n >= 6 && n <= 12
}

// Input is everything one inbound message tells us about the user.
type Input struct {
	Text         string
	ContactName  string
	ContactPhone string
	Channel      string
}

// Enrich merges identifiers found in the input into a copy of the session and
// reports which fields changed. The detected name is only set once; an
// explicit preferred name is kept separately. Contact metadata wins over
// numbers typed in the message.
func Enrich(s model.Session, in Input) (model.Session, []string) {
	var changed []string
	set := func(dst *string, v, field string) {
		if v != "" && *dst != v {
			*dst = v
			changed = append(changed, field)
		}
	}

	if s.Name == "" {
		set(&s.Name, ExtractName(in.Text, in.ContactName), "name")
	}
	set(&s.PreferredName, ExtractPreferredName(in.Text), "preferred_name")
	set(&s.DNI, ExtractDNI(in.Text), "dni")

	phone := NormalizePhone(in.ContactPhone)
	if phone == "" {
		phone = ExtractPhone(in.Text)
	}
	set(&s.Phone, phone, "phone")
	set(&s.LastChannel, in.Channel, "last_channel")

	return s, changed
}

// Personalize prefixes reply with the user's name unless it already starts
// with it.
func Personalize(name, reply string) string {
	if name == "" || reply == "" {
		return reply
	}
	if strings.HasPrefix(Fold(reply), Fold(name)) {
		return reply
	}
	return name + ", " + reply
}
