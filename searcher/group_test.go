package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/wikipack/model"
)

func TestGroupByLink(t *testing.T) {
	hits := []model.DocumentEntry{
		{Link: "c/o/n/Conejo", Title: "Oryctolagus cuniculus", Subtitle: "Oryctolagus", Score: 2, Kind: model.RedirectArticle},
		{Link: "l/i/e/Liebre", Title: "Liebre", Score: 4, Kind: model.OriginalArticle, Description: "lagomorfo"},
		{Link: "c/o/n/Conejo", Title: "Conejo (animal)", Score: 3, Kind: model.OriginalArticle, Description: "mamífero"},
		{Link: "c/o/n/Conejo", Title: "Conejo común", Score: 1, Kind: model.RedirectArticle},
	}

	groups := GroupByLink(hits)
	require.Len(t, groups, 2)

	assert.Equal(t, Group{
		Link:        "c/o/n/Conejo",
		Title:       "Conejo (animal)",
		Description: "mamífero",
		Score:       6,
		Tokens:      []string{"común", "cuniculus", "oryctolagus"},
	}, groups[0])

	assert.Equal(t, Group{
		Link:        "l/i/e/Liebre",
		Title:       "Liebre",
		Description: "lagomorfo",
		Score:       4,
		Tokens:      []string{},
	}, groups[1])
}

func TestGroupByLink_NoOriginalKeepsFirst(t *testing.T) {
	groups := GroupByLink([]model.DocumentEntry{
		{Link: "a", Title: "Primero", Score: 1, Kind: model.RedirectArticle},
		{Link: "a", Title: "Segundo", Score: 1, Kind: model.RedirectArticle},
		{Link: "b", Title: "Otro", Score: 2, Kind: model.RedirectArticle},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "a", groups[0].Link, "ties keep first appearance")
	assert.Equal(t, "Primero", groups[0].Title)
	assert.Equal(t, []string{"segundo"}, groups[0].Tokens)
}

func TestGetGrouped(t *testing.T) {
	f := newFakeIndex()
	f.full = []model.DocumentEntry{
		{Link: "a", Title: "A", Score: 1, Kind: model.OriginalArticle},
		{Link: "a", Title: "Alias", Score: 5, Kind: model.RedirectArticle},
		{Link: "b", Title: "B", Score: 3, Kind: model.OriginalArticle},
	}
	close(f.ready)
	s := newSearcher(t, f)

	id, err := s.StartSearch([]string{"x"})
	require.NoError(t, err)
	groups, err := s.GetGrouped(context.Background(), id, 0, 10)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Title)
	assert.Equal(t, 6, groups[0].Score)
	assert.Equal(t, []string{"alias"}, groups[0].Tokens)

	_, err = s.GetGrouped(context.Background(), "nope", 0, 10)
	assert.ErrorIs(t, err, ErrUnknownSearch)
}
