package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a drag-surface identifier.
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindColumn        Kind = "column"
	KindCard          Kind = "card"
	KindCardDroppable Kind = "card-droppable"
	KindUser          Kind = "user"
)

// Prefix order matters: "card-droppable-" must be tried before "card-".
var kindPrefixes = [...]struct {
	kind   Kind
	prefix string
}{
	{KindColumn, "column-"},
	{KindCardDroppable, "card-droppable-"},
	{KindCard, "card-"},
	{KindUser, "user-"},
}

// Encode produces the drag-surface token for an entity. Unknown kinds yield "".
func Encode(kind Kind, id int) string {
	for _, p := range kindPrefixes {
		if p.kind == kind {
			return p.prefix + strconv.Itoa(id)
		}
	}
	return ""
}

// Classify returns the kind of token without validating its suffix.
func Classify(token string) Kind {
	kind, _ := split(token)
	return kind
}

// Decode parses a token back into its kind and entity id.
func Decode(token string) (Kind, int, error) {
	kind, suffix := split(token)
	if kind == KindUnknown {
		return KindUnknown, 0, fmt.Errorf("%w: %q", ErrMalformedIdentifier, token)
	}
	id, err := strconv.Atoi(suffix)
	if err != nil {
		return KindUnknown, 0, fmt.Errorf("%w: %q", ErrMalformedIdentifier, token)
	}
	return kind, id, nil
}

func split(token string) (Kind, string) {
	for _, p := range kindPrefixes {
		if strings.HasPrefix(token, p.prefix) {
			return p.kind, token[len(p.prefix):]
		}
	}
	return KindUnknown, ""
}
