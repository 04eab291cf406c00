package sqlite

import "encoding/json"

// marshalJSON and unmarshalJSON centralize the json.Marshal/Unmarshal pairs
// every repository method uses to round-trip the nested domain structs
// (TechnicalMetadata, ParsedInfo, the *Details records) through a single
// TEXT column: denormalized blobs next to the normalized columns the
// queries actually filter on.

func marshalJSON(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalJSON[T any](s *string) (*T, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(*s), &v); err != nil {
		return nil, err
	}
	return &v, nil
}
