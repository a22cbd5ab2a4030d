package document

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
		wantErr  bool
	}{
		{"plain", Plain, false},
		{"", Plain, false},
		{"md", Markdown, false},
		{"Markdown", Markdown, false},
		{"tex", LaTeX, false},
		{"latex", LaTeX, false},
		{"xopp", Xournal, false},
		{"xournalpp", Xournal, false},
		{"docx", Plain, true},
	}

	for _, test := range tests {
		result, err := ParseType(test.input)
		if test.wantErr {
			assert.Error(t, err, "ParseType(%q)", test.input)
			continue
		}

		require.NoError(t, err, "ParseType(%q)", test.input)
		assert.Equal(t, test.expected, result, "ParseType(%q)", test.input)
	}
}

func TestType_TextRoundTrip(t *testing.T) {
	for _, typ := range []Type{Plain, Markdown, LaTeX, Xournal} {
		text, err := typ.MarshalText()
		require.NoError(t, err)

		var parsed Type
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, typ, parsed)
	}

	_, err := Type(42).MarshalText()
	assert.Error(t, err)
}

func TestNewID_TimeOrdered(t *testing.T) {
	first, err := NewID()
	require.NoError(t, err)

	second, err := NewID()
	require.NoError(t, err)

	assert.Equal(t, uuid.Version(7), first.Version())
	assert.Less(t, first.String(), second.String())
}

func TestParseID(t *testing.T) {
	id := uuid.New()

	parsed, err := ParseID(" " + id.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("not-an-id")
	assert.Error(t, err)
}

func TestBaseName(t *testing.T) {
	id := uuid.New()

	assert.Equal(t, id.String(), BaseName(&Meta{ID: id}))
	assert.Equal(t, id.String()+".md", BaseName(&Meta{ID: id, Extension: "md"}))
}
