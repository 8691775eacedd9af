// Package interpret turns raw model output into structured values.
package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/logging"
)

// RawResponseKey holds the untouched model text when lenient parsing fails.
const RawResponseKey = "rawResponse"

// Interpreter parses model output. The zero value is not usable; use New.
type Interpreter struct {
	log logging.Logger
}

func New(log logging.Logger) *Interpreter {
	return &Interpreter{log: log}
}

// StripFences removes a surrounding Markdown code fence and whitespace.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

var errTrailingData = errors.New("trailing data after JSON value")

// decodeJSON reads exactly one JSON value. Numbers stay json.Number so they
// are written back with the digits the model produced.
func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}

// Parse decodes raw as JSON after fence stripping. When that fails, strict
// mode returns ErrMalformedInput and lenient mode returns
// {"rawResponse": raw}.
func (i *Interpreter) Parse(ctx context.Context, raw string, strict bool) (any, error) {
	v, err := decodeJSON(StripFences(raw))
	if err == nil {
		return v, nil
	}

	if strict {
		return nil, common.NewError(common.ErrMalformedInput, "model response is not valid JSON")
	}
	i.log.Warn(ctx, "model response is not JSON, returning raw text",
		"error", err,
		"response", common.TruncateForLog(raw, 200),
	)
	return map[string]any{RawResponseKey: raw}, nil
}
