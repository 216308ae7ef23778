package wire

import "encoding/json"

// Encode marshals v with encoding/json.
func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals body into v with encoding/json.
func (JSON) Decode(body []byte, v any) error {
	return json.Unmarshal(body, v)
}
