package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Norgate-AV/docrender/internal/document"
)

// ErrAmbiguousID is returned when a prefix matches more than one document
var ErrAmbiguousID = errors.New("ambiguous document id")

// ResolveID turns a command line argument into a document id. The
// argument is either a full id or a unique prefix of one of known.
func ResolveID(arg string, known []document.ID) (document.ID, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if arg == "" {
		return document.ID{}, fmt.Errorf("%w: empty id", document.ErrDocumentNotFound)
	}

	if id, err := document.ParseID(arg); err == nil {
		return id, nil
	}

	var matches []document.ID
	for _, id := range known {
		if strings.HasPrefix(id.String(), arg) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return document.ID{}, fmt.Errorf("%w: %s", document.ErrDocumentNotFound, arg)
	case 1:
		return matches[0], nil
	default:
		return document.ID{}, fmt.Errorf("%w: %s matches %d documents", ErrAmbiguousID, arg, len(matches))
	}
}

// ShortID returns the first characters of an id for display
func ShortID(id document.ID) string {
	return id.String()[:8]
}
