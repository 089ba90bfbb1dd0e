package model

import (
	"fmt"
	"strings"
)

// DocID is the sequential identifier of an indexed document.
// It is assigned by the index builder and never reused within a build.
type DocID uint32

// Kind distinguishes real articles from redirect aliases.
type Kind uint8

const (
	// OriginalArticle is an entry backed by real article content.
	OriginalArticle Kind = iota
	// RedirectArticle is an entry created for an alias of another article.
	RedirectArticle
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case OriginalArticle:
		return "original"
	case RedirectArticle:
		return "redirect"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case OriginalArticle, RedirectArticle:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("model: invalid kind %d", uint8(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "original":
		*k = OriginalArticle
	case "redirect":
		*k = RedirectArticle
	default:
		return fmt.Errorf("model: unknown kind %q", text)
	}
	return nil
}

// DocumentEntry is the metadata a search hit resolves to.
//
// DocumentEntry is comparable; two entries with identical fields are
// duplicates and rejected at build time.
type DocumentEntry struct {
	// Link is the sharded path of the article (e.g. "c/o/n/Conejo").
	Link string `json:"link"`
	// Title is the article title.
	Title string `json:"title"`
	// Subtitle holds the alias text for redirect entries.
	Subtitle string `json:"subtitle,omitempty"`
	// Score is precomputed externally; higher ranks first.
	Score int `json:"score"`
	// Kind tells whether the entry is an article or an alias.
	Kind Kind `json:"kind"`
	// Description is an optional short snippet.
	Description string `json:"description,omitempty"`
}

// String returns a compact representation for logs and errors.
func (e DocumentEntry) String() string {
	if e.Subtitle != "" {
		return fmt.Sprintf("%s (%s, %s, score=%d)", e.Title, e.Subtitle, e.Link, e.Score)
	}
	return fmt.Sprintf("%s (%s, score=%d)", e.Title, e.Link, e.Score)
}

// Document is one input of the index builder.
type Document struct {
	// Tokens are the words the document is indexed under.
	Tokens []string
	// Score overrides Entry.Score when non-zero.
	Score int
	Entry DocumentEntry
}

// Article is one input of the content store builder.
type Article struct {
	Name string
	Data []byte
}

// Redirect maps an alias name to its canonical article name.
// Target may carry a "#fragment".
type Redirect struct {
	Alias  string
	Target string
}
