package searcher

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/hupe1980/wikipack/model"
)

// Group is the set of hits that share one link.
type Group struct {
	Link string
	// Title and Description come from the original article when it is one
	// of the hits, else from the first hit.
	Title       string
	Description string
	// Score is the sum of the hit scores.
	Score int
	// Tokens are the lowercased words of the other titles that the group
	// title lacks, sorted.
	Tokens []string
}

var tokenCleaner = strings.NewReplacer("(", "", ")", "", ",", "")

func titleTokens(title string) []string {
	fields := strings.Fields(title)
	out := fields[:0]
	for _, f := range fields {
		if t := tokenCleaner.Replace(strings.ToLower(f)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// GroupByLink merges entries by link. Groups are ordered by summed score,
// highest first, ties by first appearance.
func GroupByLink(entries []model.DocumentEntry) []Group {
	type acc struct {
		group    Group
		original bool
		tokens   map[string]struct{}
	}
	var order []*acc
	byLink := make(map[string]*acc)

	for _, e := range entries {
		a, ok := byLink[e.Link]
		if !ok {
			a = &acc{
				group:  Group{Link: e.Link, Title: e.Title, Description: e.Description},
				tokens: make(map[string]struct{}),
			}
			byLink[e.Link] = a
			order = append(order, a)
		}
		a.group.Score += e.Score
		if e.Kind == model.OriginalArticle && !a.original {
			a.original = true
			a.group.Title = e.Title
			a.group.Description = e.Description
		}
		for _, t := range titleTokens(e.Title) {
			a.tokens[t] = struct{}{}
		}
		for _, t := range titleTokens(e.Subtitle) {
			a.tokens[t] = struct{}{}
		}
	}

	groups := make([]Group, len(order))
	for i, a := range order {
		for _, t := range titleTokens(a.group.Title) {
			delete(a.tokens, t)
		}
		a.group.Tokens = make([]string, 0, len(a.tokens))
		for t := range a.tokens {
			a.group.Tokens = append(a.group.Tokens, t)
		}
		slices.Sort(a.group.Tokens)
		groups[i] = a.group
	}
	slices.SortStableFunc(groups, func(a, b Group) int { return cmp.Compare(b.Score, a.Score) })
	return groups
}

// GetGrouped returns the window [start, start+count) of session id grouped
// by link. It blocks like GetResults.
func (s *Searcher) GetGrouped(ctx context.Context, id string, start, count int) ([]Group, error) {
	entries, err := s.GetResults(ctx, id, start, count)
	if entries == nil {
		return nil, err
	}
	return GroupByLink(entries), err
}
