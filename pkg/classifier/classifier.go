// Package classifier tags text fragments as prose or source code using a fixed
// set of line signatures. It never calls out and never learns.
package classifier

import (
	"regexp"
	"strings"
)

type ContentType string

const (
	ContentProse ContentType = "prose"
	ContentCode  ContentType = "code"
)

// CodeRatioThreshold is the fraction of matching lines above which a fragment is code.
const CodeRatioThreshold = 0.4

var signatures = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(def |class |import |from .+ import)`),
	regexp.MustCompile(`^\s*(if |elif |else:|for |while |try:|except|finally:)`),
	regexp.MustCompile(`^\s*(return |yield |raise |with )`),
	regexp.MustCompile(`^\s*#\s`),
	regexp.MustCompile(`>>>\s`),
	regexp.MustCompile(`^\s*(print\(|input\(|len\(|range\()`),
	regexp.MustCompile(`[=!<>]=|[+\-*/]=`),
	regexp.MustCompile(`^\s{4,}\S`),
	regexp.MustCompile(`\[.*\]|\{.*\}`),
}

// Classify returns ContentCode when more than 40% of the lines of text match
// at least one code signature. Blank lines count toward the total.
func Classify(text string) ContentType {
	lines := strings.Split(text, "\n")
	matched := 0
	for _, line := range lines {
		if isCodeLine(line) {
			matched++
		}
	}
	if float64(matched)/float64(len(lines)) > CodeRatioThreshold {
		return ContentCode
	}
	return ContentProse
}

func isCodeLine(line string) bool {
	for _, re := range signatures {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
