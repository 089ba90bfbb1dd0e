package index

import (
	"errors"
	"fmt"

	"github.com/hupe1980/wikipack/model"
)

var (
	// ErrEmptyCorpus is returned by Build when no document was supplied.
	ErrEmptyCorpus = errors.New("index: empty corpus")

	// ErrMissingTerm is returned by Strict searches for a word absent from the dictionary.
	ErrMissingTerm = errors.New("index: missing term")

	// ErrCorrupt is returned for unreadable key files.
	ErrCorrupt = errors.New("index: corrupt key file")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("index: closed")
)

// DuplicateEntryError reports two inputs with identical entries.
type DuplicateEntryError struct {
	Entry model.DocumentEntry
	// First and Second are the input positions of the two documents.
	First, Second int
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("index: duplicate entry %s (documents %d and %d)", e.Entry, e.First, e.Second)
}

// InvalidTokenError reports a token that cannot be indexed.
type InvalidTokenError struct {
	Token    string
	Reason   string
	Entry    model.DocumentEntry
	Position int
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("index: invalid token %q in document %d (%s): %s", e.Token, e.Position, e.Entry, e.Reason)
}
