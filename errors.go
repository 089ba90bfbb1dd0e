package wikipack

import (
	"errors"
	"fmt"

	"github.com/hupe1980/wikipack/content"
	"github.com/hupe1980/wikipack/index"
	"github.com/hupe1980/wikipack/internal/linkpath"
	"github.com/hupe1980/wikipack/manifest"
	"github.com/hupe1980/wikipack/searcher"
)

var (
	// ErrNotFound is returned when an item, image or search session is not
	// found. Redirect loops and unreadable blocks are reported as not found.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by a closed Library.
	ErrClosed = errors.New("wikipack: closed")

	// ErrNoImages is returned by GetImage on a library built without images.
	// It satisfies errors.Is(err, ErrNotFound).
	ErrNoImages = fmt.Errorf("wikipack: library has no images: %w", ErrNotFound)
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, content.ErrNotFound) ||
		errors.Is(err, searcher.ErrUnknownSearch) ||
		errors.Is(err, linkpath.ErrEmptyName)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if !errors.Is(err, ErrNotFound) && isNotFound(err) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Closed unification.
	if errors.Is(err, content.ErrClosed) || errors.Is(err, index.ErrClosed) || errors.Is(err, searcher.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	if errors.Is(err, manifest.ErrNotFound) {
		return fmt.Errorf("wikipack: artifact missing: %w", err)
	}
	return err
}
