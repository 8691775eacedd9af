package rag

import (
	"fmt"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/mitchellh/mapstructure"
)

// weakDecode copies a loosely typed JSON value into out. Numbers and
// booleans become text.
func weakDecode(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func decodeObject(in any, out any, what string) error {
	if _, ok := in.(map[string]any); !ok {
		return common.NewError(common.ErrInvalidInput, fmt.Sprintf("%s must be an object", what))
	}
	if err := weakDecode(in, out); err != nil {
		return common.NewError(fmt.Errorf("%w: %v", common.ErrInvalidInput, err), fmt.Sprintf("invalid %s", what))
	}
	return nil
}

// DecodeListing reads one uploaded listing object.
func DecodeListing(in any) (Listing, error) {
	var l Listing
	err := decodeObject(in, &l, "property")
	return l, err
}

// DecodeListings reads a non-empty array of listing objects.
func DecodeListings(in any) ([]Listing, error) {
	arr, ok := in.([]any)
	if !ok || len(arr) == 0 {
		return nil, common.NewError(common.ErrInvalidInput, "property must be a non-empty array for bulk processing")
	}
	out := make([]Listing, 0, len(arr))
	for _, item := range arr {
		l, err := DecodeListing(item)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// DecodeComparisonProperty reads one side of a comparison request.
func DecodeComparisonProperty(in any) (ComparisonProperty, error) {
	var p ComparisonProperty
	err := decodeObject(in, &p, "property")
	return p, err
}

// DecodeClientInfo reads the client block of a comparison request.
func DecodeClientInfo(in any) (ClientInfo, error) {
	var c ClientInfo
	err := decodeObject(in, &c, "clientInfoJson")
	return c, err
}
