package policy

import (
	"regexp"
	"strings"
)

type evidenceClass int

const (
	classIdentifier evidenceClass = iota
	classFinancial
	classMedical
)

type match struct {
	name  string
	class evidenceClass
}

type pattern struct {
	name   string
	class  evidenceClass
	re     *regexp.Regexp
	redact bool // matched spans are masked by Redact
}

// Evidence patterns. Keyword patterns classify but are not masked;
// redaction targets the identifying spans, not the vocabulary around them.
var patterns = []pattern{
	{"ssn", classIdentifier, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), true},
	{"card_number", classIdentifier, regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`), true},
	{"passport", classIdentifier, regexp.MustCompile(`(?i)\bpassport\s*(?:no\.?|number)?[:#]?\s*[A-Z0-9]{6,9}\b`), true},
	{"account_number", classFinancial, regexp.MustCompile(`(?i)\b(?:account|acct|routing)\s*(?:no\.?|number)?[:#]?\s*\d{6,17}\b`), true},
	{"financial_terms", classFinancial, regexp.MustCompile(`(?i)\b(?:tax return|1099|w-2|bank statement|wire transfer|beneficiary)\b`), false},
	{"medical_terms", classMedical, regexp.MustCompile(`(?i)\b(?:diagnosis|prescription|patient|pathology|icd-10|medical record)\b`), false},
}

func matchEvidence(text string) []match {
	var out []match
	for _, p := range patterns {
		if p.re.MatchString(text) {
			out = append(out, match{name: p.name, class: p.class})
		}
	}
	return out
}

// Redact masks the identifying spans in text, preserving length and layout
// so page structure survives for the model.
func Redact(text string) string {
	for _, p := range patterns {
		if !p.redact {
			continue
		}
		text = p.re.ReplaceAllStringFunc(text, func(s string) string {
			// Mask digits and letters, keep separators.
			return strings.Map(func(r rune) rune {
				switch {
				case r >= '0' && r <= '9':
					return '#'
				case r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z':
					return '#'
				default:
					return r
				}
			}, s)
		})
	}
	return text
}
