package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumHex(t *testing.T) {
	// Known SHA-256 vector.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SumHex(nil),
	)
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		SumHex([]byte("hello")),
	)

	sum := Sum([]byte("hello"))
	assert.Len(t, sum, DigestSize)
}

func TestValidHex(t *testing.T) {
	valid := SumHex([]byte("doc"))
	assert.True(t, ValidHex(valid))

	for name, s := range map[string]string{
		"empty":     "",
		"short":     valid[:63],
		"long":      valid + "0",
		"uppercase": strings.ToUpper(valid),
		"not hex":   strings.Repeat("z", 64),
	} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, ValidHex(s))
		})
	}
}

func TestDecode(t *testing.T) {
	sum := Sum([]byte("doc"))
	raw, ok := Decode(SumHex([]byte("doc")))
	require.True(t, ok)
	assert.Equal(t, sum[:], raw)

	_, ok = Decode("nope")
	assert.False(t, ok)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "2cf24dba", Prefix("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"))
	assert.Equal(t, "short", Prefix("short"))
}
