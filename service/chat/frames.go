package chat

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Frame is the wire envelope in both directions:
//
//	{"event": "sendMessage", "data": {...}}
//
// Data stays untyped until the handler decodes it into its payload struct.
type Frame struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if f.Event == "" {
		return nil, errors.New("frame missing event")
	}
	return f, nil
}

func EncodeFrame(event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data,omitempty"`
	}{Event: event, Data: payload})
	if err != nil {
		return nil, errors.Wrapf(err, "marshal frame %s", event)
	}
	return raw, nil
}

// DecodePayload maps the untyped frame data onto a payload struct. Unknown
// fields are discarded; json tags double as field names via mapstructure.
func DecodePayload[T any](data map[string]interface{}) (*T, error) {
	out := new(T)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build payload decoder")
	}
	if err := dec.Decode(data); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	return out, nil
}
