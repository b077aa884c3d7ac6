package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Codec converts structured values to text and back
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
	String() string
}

// ParseCodec returns codec by name, json or yaml
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON{}, nil
	case "yaml", "yml":
		return YAML{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// JSON codec, the format the front-end speaks natively
type JSON struct{}

// Marshal encodes v as compact json
func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes a single json document. Trailing data is an error.
func (JSON) Unmarshal(data []byte) (any, error) {
	var res any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	// anything but whitespace after the value fails here, including stray closing delimiters
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after json value")
	}
	return res, nil
}

func (JSON) String() string { return "json" }

// YAML codec. Decoded values are normalized to the json model: numbers become float64
// and mappings become map[string]any, so both codecs hand the same shapes to the application.
type YAML struct{}

// Marshal encodes v as yaml document
func (YAML) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Unmarshal decodes yaml document into json-compatible value
func (YAML) Unmarshal(data []byte) (any, error) {
	var res any
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return normalize(res)
}

func (YAML) String() string { return "yaml" }

func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	case map[any]any:
		res := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			res[fmt.Sprint(k)] = n
		}
		return res, nil
	case []any:
		for i, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case time.Time:
		return val.Format(time.RFC3339Nano), nil
	case float64, string, bool, nil:
		return val, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}
