package v1

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/syncboard/internal/domain"
)

// FlexibleID is an identifier that clients may send either as a JSON string
// or as a JSON number. The raw value is kept so malformed entries can be
// reported per item rather than failing the whole request.
type FlexibleID struct {
	raw any
}

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("v1.FlexibleID.UnmarshalJSON: %w", err)
	}
	f.raw = v
	return nil
}

func (f FlexibleID) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.raw)
}

// Raw returns the decoded JSON value (string, json.Number, bool, nil, ...).
func (f FlexibleID) Raw() any { return f.raw }

// String returns the canonical identifier or ErrInvalid.
func (f FlexibleID) String() (string, error) {
	return domain.NormalizeID(f.raw)
}

// Schema leaves the type open: validation happens per item after decoding.
func (FlexibleID) Schema(_ huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Identifier as a string or an integer",
		Examples:    []any{"42", 42},
	}
}

func rawIDs(ids []FlexibleID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id.Raw()
	}
	return out
}
