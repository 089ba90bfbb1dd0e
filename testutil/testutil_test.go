package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/wikipack/model"
)

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(4711)
	a := []string{rng.Word(), rng.Word(), rng.Word()}
	rng.Reset()
	b := []string{rng.Word(), rng.Word(), rng.Word()}
	assert.Equal(t, a, b)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestZipf(t *testing.T) {
	rng := NewRNG(1)
	counts := make([]int, 10)
	for range 2000 {
		v := rng.Zipf(10, 1.5)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 10)
		counts[v]++
	}
	assert.Greater(t, counts[0], counts[9])
}

func TestScenario(t *testing.T) {
	c := Scenario()
	require.Len(t, c.Documents, 3)
	require.Len(t, c.Articles, 3)
	assert.Equal(t, "c/o/n/conejo blanco", c.Documents[1].Entry.Link)
	assert.Equal(t, "conejo blanco", c.Articles[1].Name)
	assert.Equal(t, []string{"conejo", "blanco"}, c.Documents[1].Tokens)
}

func TestCorpus(t *testing.T) {
	rng := NewRNG(42)
	c := rng.Corpus(200, CorpusOptions{RedirectRate: 0.5, Images: 5})

	assert.Len(t, c.Articles, 200)
	assert.Len(t, c.Images, 5)
	assert.Len(t, c.Documents, 200+len(c.Redirects))
	assert.NotEmpty(t, c.Redirects)

	names := map[string]bool{}
	for _, a := range c.Articles {
		assert.False(t, names[a.Name], "duplicate article %q", a.Name)
		names[a.Name] = true
	}
	for _, r := range c.Redirects {
		assert.True(t, names[r.Target], "redirect target %q is an article", r.Target)
	}
	for _, d := range c.Documents {
		if d.Entry.Kind == model.RedirectArticle {
			assert.NotEmpty(t, d.Entry.Subtitle)
		}
		assert.NotEmpty(t, d.Tokens)
	}
	assert.NotNil(t, c.ImageSource())
	assert.Nil(t, Scenario().ImageSource())
}
