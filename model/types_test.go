package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindText(t *testing.T) {
	for _, k := range []Kind{OriginalArticle, RedirectArticle} {
		text, err := k.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, k.String(), string(text))

		var got Kind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}

	assert.Equal(t, "redirect", RedirectArticle.String())
	assert.Equal(t, "kind(7)", Kind(7).String())

	_, err := Kind(7).MarshalText()
	assert.Error(t, err)

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("REDIRECT")))
	assert.Equal(t, RedirectArticle, k)
	assert.Error(t, k.UnmarshalText([]byte("alias")))
}

func TestEntryJSONKind(t *testing.T) {
	e := DocumentEntry{Link: "c/o/n/Conejito", Title: "Conejo", Subtitle: "Conejito", Kind: RedirectArticle}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"redirect"`)

	var back DocumentEntry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e, back)

	r := Redirect{Alias: "Conejito", Target: "Conejo#Crias"}
	assert.Equal(t, "Conejito", r.Alias)
}
