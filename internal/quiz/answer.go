package quiz

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize uppercases and trims an answer for comparison.
func Normalize(s string) string {
	// Casers carry state; one per call.
	return strings.TrimSpace(cases.Upper(language.Und).String(s))
}

// IsSkipped reports whether a submitted answer marks a skipped question.
func IsSkipped(given string) bool {
	switch Normalize(given) {
	case "SKIPPED", "SKIP":
		return true
	}
	return false
}

// IsCorrect grades a submitted answer against the expected one. Skips are
// always wrong; T/TRUE and F/FALSE are interchangeable.
func IsCorrect(given, expected string) bool {
	if IsSkipped(given) {
		return false
	}

	g, e := Normalize(given), Normalize(expected)
	if g == e {
		return true
	}
	return canonicalBool(g) != "" && canonicalBool(g) == canonicalBool(e)
}

func canonicalBool(s string) string {
	switch s {
	case "T", "TRUE":
		return "TRUE"
	case "F", "FALSE":
		return "FALSE"
	}
	return ""
}
