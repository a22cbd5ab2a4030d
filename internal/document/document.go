// Package document defines the document identity, type and metadata the
// render engine reads from the document store. The engine never mutates
// documents; it only consumes the Library interface.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDocumentNotFound is returned when a document's storage folder is absent
var ErrDocumentNotFound = errors.New("document not found")

// ID names a document's storage folder and its metadata record
type ID = uuid.UUID

// NewID returns a new time-ordered document id
func NewID() (ID, error) {
	return uuid.NewV7()
}

// ParseID parses a document id from its string form
func ParseID(s string) (ID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid document id %q: %w", s, err)
	}

	return id, nil
}

// Type is the source format of a document
type Type int

const (
	Plain Type = iota
	Markdown
	LaTeX
	Xournal
)

var typeNames = map[Type]string{
	Plain:    "plain",
	Markdown: "md",
	LaTeX:    "tex",
	Xournal:  "xopp",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType accepts the canonical type names and their common aliases
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "txt", "text", "":
		return Plain, nil
	case "md", "markdown":
		return Markdown, nil
	case "tex", "latex":
		return LaTeX, nil
	case "xopp", "xournal", "xournalpp":
		return Xournal, nil
	}

	return Plain, fmt.Errorf("unknown document type %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (t Type) MarshalText() ([]byte, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("unknown document type %d", int(t))
	}

	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

// Meta is the document metadata exposed by the document store
type Meta struct {
	ID    ID       `yaml:"id"`
	Title string   `yaml:"title"`
	Type  Type     `yaml:"type"`
	Tags  []string `yaml:"tags,omitempty"`

	// Extension of the primary file without the leading dot, may be empty
	Extension string `yaml:"extension,omitempty"`

	Created  time.Time `yaml:"created"`
	Accessed time.Time `yaml:"-"`
}

// Library is the narrow view of the document store the render engine needs
type Library interface {
	// Exists reports whether the document's storage folder is present
	Exists(ctx context.Context, id ID) (bool, error)

	// Meta returns the document's metadata
	Meta(ctx context.Context, id ID) (*Meta, error)

	// FilePath returns the path of the document's primary file
	FilePath(meta *Meta) string

	// FolderPath returns the document's storage folder
	FolderPath(id ID) string
}

// BaseName returns the file name of a document's primary file
func BaseName(meta *Meta) string {
	if meta.Extension == "" {
		return meta.ID.String()
	}

	return meta.ID.String() + "." + meta.Extension
}
