package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodec(t *testing.T) {
	tbl := []struct {
		in   string
		want string
		err  bool
	}{
		{"", "json", false},
		{"json", "json", false},
		{"JSON", "json", false},
		{"yaml", "yaml", false},
		{" yml ", "yaml", false},
		{"toml", "", true},
	}

	for _, tt := range tbl {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCodec(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestJSON_Marshal(t *testing.T) {
	data, err := JSON{}.Marshal(map[string]any{"items": []any{"a", "b"}, "order": "shuffled"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":["a","b"],"order":"shuffled"}`, string(data))
}

func TestJSON_Unmarshal(t *testing.T) {
	res, err := JSON{}.Unmarshal([]byte(" {\"a\":[1,\"x\"]} \n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{1.0, "x"}}, res)

	for _, raw := range []string{`{"a":1}]`, `{"a":1}}`, `[1]]`, `{"a":1} {"b":2}`, `1 2`, `{"a":`} {
		_, err := JSON{}.Unmarshal([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestYAML_Unmarshal(t *testing.T) {
	in := `
items:
  - a
  - b
count: 2
ratio: 0.5
1: numeric key
nested:
  list: [1, 2]
`
	res, err := YAML{}.Unmarshal([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"items":  []any{"a", "b"},
		"count":  2.0,
		"ratio":  0.5,
		"1":      "numeric key",
		"nested": map[string]any{"list": []any{1.0, 2.0}},
	}, res)
}

func TestYAML_MarshalTimestampLikeString(t *testing.T) {
	data, err := YAML{}.Marshal(map[string]any{"date": "2024-01-02"})
	require.NoError(t, err)
	res, err := YAML{}.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"date": "2024-01-02"}, res)
}
