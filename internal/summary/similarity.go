package summary

import (
	"math"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// #region assessment

// Assessment is the outcome band of a restatement.
type Assessment string

const (
	Pass    Assessment = "PASS"
	Retry   Assessment = "RETRY"
	Fail    Assessment = "FAIL"
	Skipped Assessment = "SKIPPED"
)

// Bands are inclusive lower bounds for Pass and Retry.
type Bands struct {
	Pass  float64
	Retry float64
}

var (
	SummaryBands       = Bands{Pass: 0.90, Retry: 0.80}
	PronunciationBands = Bands{Pass: 0.85, Retry: 0.70}
)

// Classify maps a ratio onto its band.
func (b Bands) Classify(ratio float64) Assessment {
	switch {
	case ratio >= b.Pass:
		return Pass
	case ratio >= b.Retry:
		return Retry
	default:
		return Fail
	}
}

// #endregion

// #region similarity

// Normalize lower-cases s and removes all whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Similarity returns the longest-matching-blocks ratio of the normalized
// strings, in [0, 1]. The pair is put in a fixed order first so the result
// does not depend on argument order.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na > nb {
		na, nb = nb, na
	}
	m := difflib.NewMatcher(runes(na), runes(nb))
	return m.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Round2 rounds to two decimal places for reporting.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// #endregion
