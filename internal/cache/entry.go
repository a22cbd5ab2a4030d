package cache

import (
	"fmt"
	"time"

	"github.com/Norgate-AV/docrender/internal/document"
)

// Kind is the format of a cached artifact, independent of the document's source type
type Kind int

const (
	Plain Kind = iota
	HTML
	PDF
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case HTML:
		return "html"
	case PDF:
		return "pdf"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses the persisted form of a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "plain":
		return Plain, nil
	case "html":
		return HTML, nil
	case "pdf":
		return PDF, nil
	}

	return Plain, fmt.Errorf("unknown render kind %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed
	return nil
}

// Entry is the cached render of a document
type Entry struct {
	// DocumentID is the key; there is at most one entry per document
	DocumentID document.ID `json:"document_id"`

	// Fingerprint stamps the folder state the artifact was rendered from
	Fingerprint Fingerprint `json:"fingerprint"`

	// Kind is the format of the artifact
	Kind Kind `json:"kind"`

	// UpdatedAt is when the entry was last written
	UpdatedAt time.Time `json:"updated_at"`
}
