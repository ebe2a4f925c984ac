package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
}

func TestJSONIgnoresKeyOrderAndWhitespace(t *testing.T) {
	a, err := JSON([]byte(`{"b":[1,2],"a":{"y":1.0,"x":"s"}}`))
	require.NoError(t, err)
	b, err := JSON([]byte("{\n  \"a\": {\"x\": \"s\", \"y\": 1},\n  \"b\": [1, 2]\n}"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSameJSON(t *testing.T) {
	assert.True(t, SameJSON([]byte(`{"a":1}`), []byte(`{ "a" : 1 }`)))
	assert.False(t, SameJSON([]byte(`{"a":[1,2]}`), []byte(`{"a":[2,1]}`)))
	assert.False(t, SameJSON([]byte(`{"a":1}`), []byte(`not json`)))
}
