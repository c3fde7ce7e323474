package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

const maxBodyBytes = 64 << 10

var (
	errMalformedBody = errors.New("malformed JSON body")
	errNotObject     = errors.New("body is not a JSON object")
	errNotString     = errors.New("field must be a string")
	errBadStyle      = errors.New("style must be normal, italic, or oblique")
)

// stringField is an optional JSON string member. Absent is fine; null or any
// other JSON type is rejected.
type stringField struct {
	Value string
	Set   bool
}

func (f *stringField) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return errNotString
	}
	if err := json.Unmarshal(b, &f.Value); err != nil {
		return errNotString
	}
	f.Set = true
	return nil
}

type extractRequest struct {
	URL stringField `json:"url"`
}

type matchRequest struct {
	Family  stringField `json:"family"`
	Weight  stringField `json:"weight"`
	Style   stringField `json:"style"`
	URL     stringField `json:"url"`
	Referer stringField `json:"referer"`
}

func (m matchRequest) validate() error {
	if m.Style.Set && !fontutil.Style(m.Style.Value).Valid() {
		return errBadStyle
	}
	return nil
}

// decodeBody reads a JSON object into dst. It returns errMalformedBody when
// the body is not JSON at all and another error when the JSON has the wrong
// shape.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return errNotObject
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
