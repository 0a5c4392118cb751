package process

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_MergeKeepsExistingKeys(t *testing.T) {
	p := Payload{"a": 1}
	merged := p.Merge(Payload{"b": 2})
	merged = merged.Merge(Payload{"a": 3})

	assert.Equal(t, Payload{"a": 3, "b": 2}, merged)
	assert.Equal(t, Payload{"a": 1}, p, "merge must not mutate the receiver")
}

func TestPayload_CloneOfNil(t *testing.T) {
	var p Payload
	c := p.Clone()
	require.NotNil(t, c)
	assert.Empty(t, c)
}

func TestPayload_IntAcceptsDecodedShapes(t *testing.T) {
	decoded, err := UnmarshalPayload(`{"offset": 500, "frac": 1.5}`)
	require.NoError(t, err)

	p := Payload{
		"int":    7,
		"int64":  int64(8),
		"float":  float64(9),
		"number": json.Number("10"),
		"string": "11",
	}

	assert.Equal(t, 500, decoded.Int("offset", 0))
	assert.Equal(t, -1, decoded.Int("frac", -1))
	assert.Equal(t, 7, p.Int("int", 0))
	assert.Equal(t, 8, p.Int("int64", 0))
	assert.Equal(t, 9, p.Int("float", 0))
	assert.Equal(t, 10, p.Int("number", 0))
	assert.Equal(t, 42, p.Int("string", 42))
	assert.Equal(t, 42, p.Int("missing", 42))
}

func TestPayload_Strings(t *testing.T) {
	p := Payload{
		"typed":   []string{"a", "b"},
		"decoded": []any{"c", "d"},
		"mixed":   []any{"e", 1},
		"scalar":  "f",
	}

	got, err := p.Strings("typed")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	got, err = p.Strings("decoded")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, got)

	_, err = p.Strings("mixed")
	assert.Error(t, err)

	_, err = p.Strings("scalar")
	assert.Error(t, err)

	got, err = p.Strings("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarshalPayload(t *testing.T) {
	s, err := MarshalPayload(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)

	_, err = MarshalPayload(Payload{"ch": make(chan int)})
	assert.Error(t, err)

	p, err := UnmarshalPayload("")
	require.NoError(t, err)
	assert.Empty(t, p)

	_, err = UnmarshalPayload("[1,2]")
	assert.Error(t, err)
}
