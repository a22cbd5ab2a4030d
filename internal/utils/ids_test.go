package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/docrender/internal/document"
)

func TestResolveID(t *testing.T) {
	a := uuid.MustParse("0191d0c2-aaaa-7000-8000-000000000001")
	b := uuid.MustParse("0191d0c2-bbbb-7000-8000-000000000002")
	c := uuid.MustParse("7fffffff-cccc-7000-8000-000000000003")
	known := []document.ID{a, b, c}

	tests := []struct {
		name    string
		arg     string
		want    document.ID
		wantErr error
	}{
		{"full id", a.String(), a, nil},
		{"full id not listed", "0191d0c2-dddd-7000-8000-000000000004", uuid.MustParse("0191d0c2-dddd-7000-8000-000000000004"), nil},
		{"unique prefix", "7f", c, nil},
		{"prefix across dash", "0191d0c2-b", b, nil},
		{"upper case", "7FFF", c, nil},
		{"ambiguous", "0191", uuid.Nil, ErrAmbiguousID},
		{"no match", "ab", uuid.Nil, document.ErrDocumentNotFound},
		{"empty", "  ", uuid.Nil, document.ErrDocumentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveID(tt.arg, known)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0191d0c2", ShortID(uuid.MustParse("0191d0c2-aaaa-7000-8000-000000000001")))
}
