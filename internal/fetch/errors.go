package fetch

import (
	"errors"
	"fmt"

	"github.com/WaffleSoul4/wikipedia-graph/internal/wiki"
)

// Kind classifies a fetch-path failure.
type Kind int

const (
	// KindNetwork is a transport failure or timeout. Transient instances
	// are retried with backoff before one surfaces.
	KindNetwork Kind = iota
	// KindNotFound means the title does not resolve to an article.
	// Terminal for the identity; never retried automatically.
	KindNotFound
	// KindParse means a response arrived but was not shaped as expected.
	// Terminal; indicates an API response-shape assumption broke.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindParse:
		return "parse"
	default:
		return "network"
	}
}

// Error is a classified fetch failure for one page identity.
type Error struct {
	Kind Kind
	ID   wiki.PageID
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.ID, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.ID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, defaulting to KindNetwork
// for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}

// IsNotFound reports whether err is a terminal title-resolution failure.
func IsNotFound(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindNotFound
}
