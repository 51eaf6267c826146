package models

import (
	"mime"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectMetadata_ToMap(t *testing.T) {
	hash := "sha256$00$11"
	rec := &FileRecord{
		FileName:     "résumé – final.pdf",
		ContentType:  "application/pdf",
		ShortID:      "ab12.pdf",
		ExpiresAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		PasswordHash: &hash,
	}

	m := MetadataFor(rec).ToMap()

	for k, v := range m {
		for _, r := range v {
			assert.LessOrEqual(t, r, rune(unicode.MaxASCII), "metadata %q is not ASCII: %q", k, v)
		}
	}

	var dec mime.WordDecoder
	name, err := dec.DecodeHeader(m["originalName"])
	require.NoError(t, err)
	assert.Equal(t, rec.FileName, name)

	assert.Equal(t, "application/pdf", m["contentType"])
	assert.Equal(t, "2025-06-01T12:00:00Z", m["expiresAt"])
	assert.Equal(t, "true", m["passwordProtected"])
	assert.Equal(t, hash, m["passwordHash"])
}

func TestObjectMetadata_ToMapKeepsASCIINames(t *testing.T) {
	m := MetadataFor(&FileRecord{FileName: "Report.PDF", ContentType: "application/pdf"}).ToMap()
	assert.Equal(t, "Report.PDF", m["originalName"])
	assert.NotContains(t, m, "passwordProtected")
}
