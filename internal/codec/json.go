package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

type jsonFormat struct{}

func (jsonFormat) Version() byte { return VersionJSON }

func (jsonFormat) Name() string { return "json" }

func (jsonFormat) Marshal(v any) ([]byte, error) {
	return json.Marshal(prepare(v, jsonFloat))
}

func (jsonFormat) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after json value")
	}

	normalizeInto(v)
	return nil
}

// jsonFloat keeps a decimal point on integral floats. NaN and infinities
// stay invalid json numbers and fail Marshal.
func jsonFloat(f float64) any {
	return json.Number(floatText(f))
}
