package handlerutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// StrictJSONDecoder is the app-wide body decoder. Unknown fields and trailing
// data are rejected.
func StrictJSONDecoder(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
