package optional_test

import (
	"encoding/json"
	"testing"

	"codeberg.org/mutker/hoststat/internal/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence(t *testing.T) {
	v := optional.Of(0.0)
	got, ok := v.Get()
	assert.True(t, ok)
	assert.Equal(t, 0.0, got)

	var zero optional.Value[float64]
	assert.False(t, zero.IsPresent())
	assert.Equal(t, 7.5, zero.OrElse(7.5))

	n := 3
	assert.True(t, optional.FromPtr(&n).IsPresent())
	assert.False(t, optional.FromPtr[int](nil).IsPresent())
}

type sample struct {
	Load optional.Value[float64]  `json:"load"`
	Temp optional.Value[float64]  `json:"temp"`
	Cpus optional.Value[[]string] `json:"cpus"`
}

func TestJSON(t *testing.T) {
	in := sample{
		Load: optional.Of(0.0),
		Cpus: optional.Of([]string{"cpu0"}),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"load":0,"temp":null,"cpus":["cpu0"]}`, string(data))

	var out sample
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalInvalid(t *testing.T) {
	var v optional.Value[int]
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &v))
}
