package rag

import (
	"embed"
	"fmt"
	"math"
	"strconv"
	"strings"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// Kind selects the prompt template.
type Kind int

const (
	// KindSingleMatch ranks clients from an uploaded document for one listing.
	KindSingleMatch Kind = iota
	// KindBulkMatch ranks stored clients for one stored property.
	KindBulkMatch
	// KindBulkPropertyMatch ranks clients for each of several properties.
	KindBulkPropertyMatch
	KindComparison
	KindRecommendation
)

// DefaultResults is used when a request does not name a usable result count.
const DefaultResults = 5

func (k Kind) String() string {
	switch k {
	case KindSingleMatch:
		return "single-match"
	case KindBulkMatch:
		return "bulk-match"
	case KindBulkPropertyMatch:
		return "bulk-property-match"
	case KindComparison:
		return "comparison"
	case KindRecommendation:
		return "recommendation"
	}
	return "unknown"
}

func (k Kind) templateFile() (string, bool) {
	switch k {
	case KindSingleMatch, KindBulkMatch:
		return "prompts/match.txt", true
	case KindBulkPropertyMatch:
		return "prompts/bulk_property_match.txt", true
	case KindComparison:
		return "prompts/comparison.txt", true
	case KindRecommendation:
		return "prompts/recommendation.txt", true
	}
	return "", false
}

// ClampResults bounds n to [1, max]. Non-positive n means DefaultResults.
func ClampResults(n, max int) int {
	if max < 1 {
		max = DefaultResults
	}
	if n <= 0 {
		n = DefaultResults
	}
	if n > max {
		return max
	}
	return n
}

// ParseResults reads a result count from a decoded JSON value. Numbers and
// numeric strings are accepted; fractions are truncated. Anything else
// yields DefaultResults before clamping.
func ParseResults(v any, max int) int {
	n := 0
	switch x := v.(type) {
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) && x < math.MaxInt32 {
			n = int(x)
		}
	case int:
		n = x
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && f < math.MaxInt32 {
			n = int(f)
		}
	}
	return ClampResults(n, max)
}

// Build renders the prompt of the given kind around doc. n is ignored by
// templates that do not mention a result count.
func Build(kind Kind, doc Document, n int) (string, error) {
	name, ok := kind.templateFile()
	if !ok {
		return "", fmt.Errorf("unknown prompt kind %d", int(kind))
	}
	raw, err := promptFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", name, err)
	}
	context, err := doc.Text()
	if err != nil {
		return "", err
	}

	tmpl := strings.TrimSpace(string(raw))
	tmpl = strings.ReplaceAll(tmpl, "{number}", strconv.Itoa(n))
	return strings.Replace(tmpl, "{context}", context, 1), nil
}
