package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Dimensions map[string][]string `json:"dimensions"`
	Paths      []string            `json:"paths"`
	Offset     uint64              `json:"offset"`
}

func TestCodecs_RoundTrip(t *testing.T) {
	in := sample{
		Dimensions: map[string][]string{"variable": {"HGT", "TMP"}},
		Paths:      []string{"gefs.20170101/00/gec00.t00z.pgrb2aanl"},
		Offset:     50487,
	}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out sample
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}
