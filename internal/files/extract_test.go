package files

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mimeType string
		want     bool
	}{
		{"pdf", "application/pdf", true},
		{"plain text", "text/plain", true},
		{"markdown", "text/markdown", true},
		{"csv", "text/csv", true},
		{"html", "text/html", true},
		{"json", "application/json", true},
		{"xml", "application/xml", true},
		{"with charset parameter", "text/plain; charset=utf-8", true},
		{"mixed case", "Application/PDF", true},
		{"png rejected", "image/png", false},
		{"zip rejected", "application/zip", false},
		{"binary rejected", "application/octet-stream", false},
		{"empty rejected", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Allowed(tt.mimeType))
		})
	}
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	got, err := Extract([]byte("hello, world\n"), "text/plain; charset=utf-8", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello, world\n", got.Text)
	assert.Equal(t, 1, got.Pages)
	assert.Equal(t, "notes.txt", got.Filename)
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	got, err := Extract([]byte(`{"ok":true}`), "application/json", "data.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got.Text)
	assert.Equal(t, 1, got.Pages)
}

func TestExtractUnsupported(t *testing.T) {
	t.Parallel()

	_, err := Extract([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png", "pic.png")
	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.Contains(t, err.Error(), "image/png")
}

func TestExtractCorruptPDF(t *testing.T) {
	t.Parallel()

	_, err := Extract([]byte("not a pdf"), "application/pdf", "broken.pdf")
	assert.Error(t, err)
}
