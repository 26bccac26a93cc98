package app

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeKey(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}

	cases := map[string]string{
		"hex":        hex.EncodeToString(raw),
		"base64":     base64.StdEncoding.EncodeToString(raw),
		"raw base64": base64.RawStdEncoding.EncodeToString(raw),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			decoded, err := DecodeKey("  " + encoded + " ")
			require.NoError(t, err)
			require.Equal(t, raw, decoded)
		})
	}
}

func TestDecodeKeyFallsBackToRawBytes(t *testing.T) {
	decoded, err := DecodeKey("this-is-a-raw-state-key!!")
	require.NoError(t, err)
	require.Equal(t, []byte("this-is-a-raw-state-key!!"), decoded)
}

func TestDecodeKeyEmpty(t *testing.T) {
	_, err := DecodeKey("   ")
	require.Error(t, err)
}
