package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/simp-lee/pagination"
)

// PageRequest holds pagination, sorting, and filtering parameters for
// locally stored data.
type PageRequest struct {
	Page     int
	PageSize int
	Sort     string
	Filter   map[string]string
}

// PageResult is one page of items plus pagination metadata.
type PageResult[T any] = pagination.Pagination[T]

// FlexID is an identifier the backend may encode as a JSON number or string.
type FlexID string

// UnmarshalJSON accepts "abc", 42 and null.
func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex id: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// MarshalJSON writes numeric identifiers as numbers and anything else as
// a string, so records round-trip unchanged.
func (f FlexID) MarshalJSON() ([]byte, error) {
	if f == "" {
		return []byte("null"), nil
	}
	if _, err := f.Int64(); err == nil {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}

// String returns the identifier text.
func (f FlexID) String() string { return string(f) }

// Int64 parses the identifier as a base-10 integer.
func (f FlexID) Int64() (int64, error) {
	return strconv.ParseInt(string(f), 10, 64)
}
