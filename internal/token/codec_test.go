package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeID(t *testing.T) {
	ids := []string{
		"0b9f7f0e-6a43-4b8e-9f52-1b8a4f6f0c11",
		"a",
		"ü-ñ",
	}

	for _, id := range ids {
		encoded := EncodeID(id)
		assert.NotContains(t, encoded, "=")
		assert.NotContains(t, encoded, "/")
		assert.NotContains(t, encoded, "+")

		decoded, err := DecodeID(encoded)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestDecodeID_RejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"padding":       "YQ==",
		"bad char":      "a*b",
		"std base64":    "+/+/",
		"invalid utf":   EncodeID(string([]byte{0xff, 0xfe})),
		"embedded crlf": "YW\r\nJj",
		"embedded lf":   "YWJj\n",
		"trailing bits": "YR",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeID(input)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

