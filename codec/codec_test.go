package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/wikipack/model"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)

	_, err := Parse("msgpack")
	assert.ErrorContains(t, err, "msgpack")
}

func TestCodecsInteroperate(t *testing.T) {
	shard := map[model.DocID]model.DocumentEntry{
		7: {Link: "c/o/n/conejo", Title: "Conejo blanco", Score: 5, Kind: model.OriginalArticle},
		9: {Link: "c/o/n/conejo", Title: "Conejo negro", Subtitle: "Negro", Score: 6, Kind: model.RedirectArticle},
	}

	data, err := GoJSON{}.Marshal(shard)
	require.NoError(t, err)

	var got map[model.DocID]model.DocumentEntry
	require.NoError(t, JSON{}.Unmarshal(data, &got))
	assert.Equal(t, shard, got)
}

func BenchmarkCodec_Marshal_Shard(b *testing.B) {
	shard := make(map[model.DocID]model.DocumentEntry, 1000)
	for i := range 1000 {
		shard[model.DocID(i)] = model.DocumentEntry{Link: "a/b/c/abc", Title: "Title", Score: i}
	}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		b.Run(c.Name(), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := c.Marshal(shard); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
