package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

func TestGroupGetters(t *testing.T) {
	g := Group{
		"max_models":   "5",
		"seed":         float64(42),
		"ratio":        "0.25",
		"flag":         true,
		"flag_str":     "TRUE",
		"nthreads":     "-1",
		"bad_int":      "1.5",
		"include":      []any{"GBM", "GLM"},
		"include_json": `["DRF"]`,
		"ignored":      "a, b,,c",
	}

	n, err := g.Int(10, "max_models")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = g.Int(0, "random_seed", "seed")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = g.Int(7, "absent")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = g.Int(0, "nthreads")
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	_, err = g.Int(0, "bad_int")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	f, err := g.Float(0, "ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)

	assert.True(t, g.Bool("flag"))
	assert.True(t, g.Bool("flag_str"))
	assert.False(t, g.Bool("absent"))

	assert.Equal(t, "42", g.String("", "seed"))
	assert.Equal(t, "def", g.String("def", "absent"))

	list, err := g.StringList("include")
	require.NoError(t, err)
	assert.Equal(t, []string{"GBM", "GLM"}, list)

	list, err = g.StringList("include_json")
	require.NoError(t, err)
	assert.Equal(t, []string{"DRF"}, list)

	list, err = g.StringList("ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, list)

	assert.True(t, g.Has("absent", "seed"))
	assert.False(t, g.Has("absent"))
	assert.Equal(t, "bad_int", g.Keys()[0])
}
