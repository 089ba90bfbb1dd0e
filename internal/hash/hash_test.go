package hash

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoherent_MatchesHexTail(t *testing.T) {
	for _, name := range []string{"", "Conejo", "Ñandú", "Discusión:Algo"} {
		sum := md5.Sum([]byte(name))
		hexsum := hex.EncodeToString(sum[:])
		want, err := strconv.ParseUint(hexsum[len(hexsum)-6:], 16, 32)
		require.NoError(t, err)
		assert.Equal(t, uint32(want), Coherent(name), name)
	}
}

func TestCoherent_KnownValue(t *testing.T) {
	// md5("") = d41d8cd98f00b204e9800998ecf8427e
	assert.Equal(t, uint32(0xf8427e), Coherent(""))
}

func TestBucket(t *testing.T) {
	for n := 1; n < 10; n++ {
		b := Bucket("Conejo", n)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, n)
	}
}

func TestCRC32C(t *testing.T) {
	data := []byte("wikipack")
	h := NewCRC32C()
	_, _ = h.Write(data)
	assert.Equal(t, CRC32C(data), h.Sum32())
}
