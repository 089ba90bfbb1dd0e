package testutil

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/wikipack/content"
	"github.com/hupe1980/wikipack/internal/linkpath"
	"github.com/hupe1980/wikipack/internal/textnorm"
	"github.com/hupe1980/wikipack/model"
)

// Corpus is a complete build input held in memory.
type Corpus struct {
	Documents []model.Document
	Articles  []model.Article
	Redirects []model.Redirect
	Images    []model.Article
}

// ArticleSource returns the articles as a content source.
func (c Corpus) ArticleSource() content.Source {
	return content.NewMemorySource(c.Articles...)
}

// ImageSource returns the images as a content source, or nil without images.
func (c Corpus) ImageSource() content.Source {
	if len(c.Images) == 0 {
		return nil
	}
	return content.NewMemorySource(c.Images...)
}

// Page returns the HTML stored for title.
func Page(title string) []byte {
	return []byte("<html><h1>" + title + "</h1><p>" + strings.Repeat(title+" ", 8) + "</p></html>")
}

// Add appends an original article indexed under the words of its title.
func (c *Corpus) Add(title string, score int) model.DocumentEntry {
	link, file := mustLink(title)
	e := model.DocumentEntry{Link: link, Title: title, Score: score, Kind: model.OriginalArticle}
	c.Documents = append(c.Documents, model.Document{Tokens: textnorm.Words(title), Entry: e})
	c.Articles = append(c.Articles, model.Article{Name: file, Data: Page(title)})
	return e
}

// AddRedirect appends an alias of target, indexed under the words of the
// alias and pointing at the target's link.
func (c *Corpus) AddRedirect(alias string, target model.DocumentEntry, score int) model.DocumentEntry {
	_, aliasFile := mustLink(alias)
	_, targetFile := mustLink(target.Title)
	e := model.DocumentEntry{
		Link:     target.Link,
		Title:    target.Title,
		Subtitle: alias,
		Score:    score,
		Kind:     model.RedirectArticle,
	}
	c.Documents = append(c.Documents, model.Document{Tokens: textnorm.Words(alias), Entry: e})
	c.Redirects = append(c.Redirects, model.Redirect{Alias: aliasFile, Target: targetFile})
	return e
}

func mustLink(title string) (link, file string) {
	dir, file, err := linkpath.PathFile(title, nil)
	if err != nil {
		panic(fmt.Sprintf("testutil: %v", err))
	}
	return dir + "/" + file, file
}

// Scenario returns the three-document corpus used throughout the tests.
func Scenario() Corpus {
	var c Corpus
	c.Add("ala blanca", 3)
	c.Add("conejo blanco", 5)
	c.Add("conejo negro", 6)
	return c
}

// CorpusOptions shapes a random corpus.
type CorpusOptions struct {
	// RedirectRate is the fraction of articles that get an alias.
	RedirectRate float64
	// Images is the number of random images.
	Images int
	// MaxScore bounds the Zipf-distributed scores; default 1000.
	MaxScore int
}

// Corpus generates n articles with unique titles.
func (r *RNG) Corpus(n int, opts CorpusOptions) Corpus {
	if opts.MaxScore <= 0 {
		opts.MaxScore = 1000
	}
	var c Corpus
	for i := range n {
		e := c.Add(r.Title(i), opts.MaxScore-r.Zipf(opts.MaxScore, 1.2))
		if r.Float64() < opts.RedirectRate {
			c.AddRedirect(fmt.Sprintf("%s alias %d", r.Word(), i), e, 1+r.Intn(10))
		}
	}
	for i := range opts.Images {
		size := 16 + r.Intn(512)
		c.Images = append(c.Images, model.Article{
			Name: fmt.Sprintf("%02x/%s-%d.png", i%256, r.Word(), i),
			Data: bytes.Repeat([]byte{byte(i)}, size),
		})
	}
	return c
}

// Titles returns the titles of entries in order.
func Titles(entries []model.DocumentEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

// SortedTitles returns the titles of entries sorted.
func SortedTitles(entries []model.DocumentEntry) []string {
	out := Titles(entries)
	slices.Sort(out)
	return out
}
