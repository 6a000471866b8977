package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/caldex/core"
)

func TestNormalizeMetadata(t *testing.T) {
	md := map[string]any{
		"location":  "Conference Room A",
		"recurring": false,
		"attendees": []string{"a@example.com", "b@example.com"},
		"count":     3,
		"nothing":   nil,
	}

	cleaned := NormalizeMetadata(md)

	assert.Equal(t, "Conference Room A", cleaned["location"])
	assert.Equal(t, false, cleaned["recurring"])
	assert.Equal(t, "a@example.com,b@example.com", cleaned["attendees"])
	assert.Equal(t, 3, cleaned["count"])
	assert.NotContains(t, cleaned, "nothing")
}

func TestNormalizeMetadata_Nil(t *testing.T) {
	assert.Nil(t, NormalizeMetadata(nil))
}

func TestRecordRoundTrip(t *testing.T) {
	doc := &core.Document{
		ID:      "calendar:primary:event123",
		Content: "Event: Team Meeting",
		Metadata: map[string]any{
			"calendar_id": "primary",
			"attendees":   []string{"a@example.com"},
		},
	}

	data, err := MarshalRecord(doc, []float32{0.1, 0.2, 0.3})
	require.NoError(t, err)

	rec, err := UnmarshalRecord(data)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, rec.ID)
	assert.Equal(t, doc.Content, rec.Content)
	assert.Len(t, rec.Vector, 3)
	assert.Equal(t, "primary", rec.Metadata["calendar_id"])
	assert.Equal(t, "a@example.com", rec.Metadata["attendees"])

	rebuilt := rec.Document()
	assert.Equal(t, doc.ID, rebuilt.ID)
}

func TestUnmarshalRecord_Corrupt(t *testing.T) {
	_, err := UnmarshalRecord([]byte("{nope"))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
