package interpret

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/mitchellh/mapstructure"
)

// Comparison is the model's two-property comparison with a price quote.
// Scalar values are kept as text; the model may answer "unknown".
type Comparison struct {
	Client     *ComparisonClient  `mapstructure:"client"`
	Summary    *ComparisonSummary `mapstructure:"comparisonSummary"`
	FinalQuote *FinalQuote        `mapstructure:"finalQuote"`
}

type ComparisonClient struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
	Phone string `mapstructure:"phone"`
}

type ComparisonSummary struct {
	PropertyA           *PropertyAssessment `mapstructure:"propertyA"`
	PropertyB           *PropertyAssessment `mapstructure:"propertyB"`
	RecommendedProperty string              `mapstructure:"recommendedProperty"`
	Justification       string              `mapstructure:"justification"`
}

type PropertyAssessment struct {
	Location   string   `mapstructure:"location"`
	Price      string   `mapstructure:"price"`
	Type       string   `mapstructure:"type"`
	Area       string   `mapstructure:"area"`
	Rooms      string   `mapstructure:"rooms"`
	Strengths  []string `mapstructure:"strengths"`
	Weaknesses []string `mapstructure:"weaknesses"`
}

type FinalQuote struct {
	BasePrice       string `mapstructure:"basePrice"`
	Discount        string `mapstructure:"discount"`
	AgentCommission string `mapstructure:"agentCommission"`
	TotalPrice      string `mapstructure:"totalPrice"`
	Currency        string `mapstructure:"currency"`
}

// requiredPaths must be present in a comparison, in reporting order. Paths
// ending in strengths or weaknesses must hold arrays.
var requiredPaths = [][]string{
	{"client"},
	{"comparisonSummary"},
	{"comparisonSummary", "propertyA"},
	{"comparisonSummary", "propertyA", "strengths"},
	{"comparisonSummary", "propertyA", "weaknesses"},
	{"comparisonSummary", "propertyB"},
	{"comparisonSummary", "propertyB", "strengths"},
	{"comparisonSummary", "propertyB", "weaknesses"},
	{"finalQuote"},
}

func lookup(v any, path []string) (any, bool) {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok = m[key]; !ok || v == nil {
			return nil, false
		}
	}
	return v, true
}

// checkRequired reports the first required path that is absent.
func checkRequired(v any) error {
	for _, path := range requiredPaths {
		got, ok := lookup(v, path)
		if !ok {
			return malformed(strings.Join(path, "."))
		}
		switch path[len(path)-1] {
		case "strengths", "weaknesses":
			if _, isList := got.([]any); !isList {
				return common.NewError(common.ErrMalformedInput, "model response field "+strings.Join(path, ".")+" is not a list")
			}
		}
	}
	return nil
}

func malformed(field string) error {
	return common.NewError(common.ErrMalformedInput, "model response is missing "+field)
}

// DecodeComparison strictly parses raw and maps it onto Comparison.
func (i *Interpreter) DecodeComparison(ctx context.Context, raw string) (*Comparison, error) {
	v, err := i.Parse(ctx, raw, true)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, common.NewError(common.ErrMalformedInput, "model response is not a JSON object")
	}

	if err := checkRequired(v); err != nil {
		return nil, err
	}

	var c Comparison
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, common.NewError(common.ErrMalformedInput, "model response does not match the comparison schema")
	}

	return &c, nil
}
