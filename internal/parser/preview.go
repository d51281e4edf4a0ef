package parser

import (
	"github.com/tidwall/gjson"

	"github.com/loykin/s3smoke/internal/util"
)

// Preview returns the first limit characters of body and whether the
// body was longer. Characters are runes, not bytes.
func Preview(body string, limit int) (string, bool) {
	return util.Truncate(body, limit)
}

// SummaryLine is one extracted field of a JSON response.
type SummaryLine struct {
	Path  string
	Value string
}

// Summarize extracts paths from a JSON body. Non-JSON bodies and paths
// that do not resolve yield nothing.
func Summarize(body string, paths []string) []SummaryLine {
	if len(paths) == 0 || !gjson.Valid(body) {
		return nil
	}
	var out []SummaryLine
	for _, p := range paths {
		if _, ok := util.TrimEmptyCheck(p); !ok {
			continue
		}
		r := gjson.Get(body, p)
		if !r.Exists() {
			continue
		}
		out = append(out, SummaryLine{Path: p, Value: r.String()})
	}
	return out
}
