package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
)

// Envelope is the backend's uniform response wrapper. Code 0 means success.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeEnvelope parses body as an envelope. A body that is not a JSON
// object carrying a numeric code is a response format error.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	rawCode, ok := fields["code"]
	if !ok {
		return nil, domain.NewResponseFormatError(errors.New("envelope has no code"))
	}
	code, ok := flexInt(rawCode)
	if !ok {
		return nil, domain.NewResponseFormatError(fmt.Errorf("envelope code %s is not a number", rawCode))
	}

	env := &Envelope{Code: int(code), Data: fields["data"]}
	if raw, ok := fields["message"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &env.Message); err != nil {
			env.Message = strings.Trim(string(raw), `"`)
		}
	}
	return env, nil
}

// OK reports whether the envelope signals success.
func (e *Envelope) OK() bool { return e.Code == 0 }

// Acknowledged reports whether data confirms the operation: true, a
// non-zero number, a non-empty string, or any object or array.
func (e *Envelope) Acknowledged() bool {
	d := bytes.TrimSpace(e.Data)
	if len(d) == 0 {
		return false
	}
	switch d[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		return len(d) > 2
	default:
		f, err := strconv.ParseFloat(string(d), 64)
		return err == nil && f != 0
	}
}

// Err converts a failed envelope into an ApplicationError.
func (e *Envelope) Err() error {
	return domain.NewApplicationError(e.Message)
}

// unwrapData returns root.data when body is an envelope and body itself
// otherwise. A failed envelope is an ApplicationError.
func unwrapData(body []byte) (json.RawMessage, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if _, ok := fields["code"]; !ok {
		return bytes.TrimSpace(body), nil
	}
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		return nil, env.Err()
	}
	return env.Data, nil
}

// DecodePage normalises the page shapes the backend produces:
//
//	{"data": {"records": [...], "current": 1, "pages": 3}}
//	{"data": {"records": [...], "total": 25, "current": 1, "size": 10}}
//	{"records": [...], "total": 25, "current": 1, "size": 10}
//	{"data": [...], "total": 25}
//	[...]
//
// requested supplies page and size when the response omits them.
func DecodePage[T any](body []byte, requested listing.Query) (*listing.Page[T], error) {
	root := bytes.TrimSpace(body)
	if len(root) == 0 {
		return nil, domain.NewResponseFormatError(errors.New("empty body"))
	}

	if root[0] == '[' {
		var records []T
		if err := json.Unmarshal(root, &records); err != nil {
			return nil, domain.NewResponseFormatError(err)
		}
		return buildPage(records, int64(len(records)), true, 0, 0, 0, requested), nil
	}

	fields, err := decodeObject(root)
	if err != nil {
		return nil, err
	}
	if rawCode, ok := fields["code"]; ok {
		if code, ok := flexInt(rawCode); ok && code != 0 {
			env, _ := DecodeEnvelope(root)
			if env != nil {
				return nil, env.Err()
			}
			return nil, domain.NewApplicationError("")
		}
	}

	payload := fields
	if raw, ok := fields["data"]; ok && !isNull(raw) {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var records []T
			if err := json.Unmarshal(trimmed, &records); err != nil {
				return nil, domain.NewResponseFormatError(err)
			}
			total, hasTotal := flexInt(fields["total"])
			if !hasTotal {
				total = int64(len(records))
			}
			return buildPage(records, total, true, 0, 0, 0, requested), nil
		}
		payload, err = decodeObject(trimmed)
		if err != nil {
			return nil, err
		}
	}

	rawRecords, ok := payload["records"]
	if !ok {
		return nil, domain.NewResponseFormatError(errors.New("page has no records"))
	}
	var records []T
	if !isNull(rawRecords) {
		if err := json.Unmarshal(rawRecords, &records); err != nil {
			return nil, domain.NewResponseFormatError(err)
		}
	}

	total, hasTotal := flexInt(payload["total"])
	pages, _ := flexInt(payload["pages"])
	current, _ := flexInt(payload["current"])
	size, _ := flexInt(payload["size"])

	return buildPage(records, total, hasTotal, int(pages), int(current), int(size), requested), nil
}

func buildPage[T any](records []T, total int64, hasTotal bool, pages, current, size int, requested listing.Query) *listing.Page[T] {
	if records == nil {
		records = []T{}
	}
	if current < 1 {
		current = max(requested.Page, 1)
	}
	if size < 1 {
		size = requested.PageSize
	}
	if !hasTotal {
		total = 0
	}
	if pages < 1 {
		pages = 1
		if hasTotal && size > 0 && total > 0 {
			pages = int(math.Ceil(float64(total) / float64(size)))
		}
	}
	return &listing.Page[T]{
		Items:      records,
		Total:      total,
		Page:       current,
		PageSize:   size,
		TotalPages: pages,
	}
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domain.NewResponseFormatError(errors.New("expected a JSON object"))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, domain.NewResponseFormatError(err)
	}
	return fields, nil
}

// flexInt reads an integer encoded as a JSON number or numeric string.
func flexInt(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return 0, false
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
