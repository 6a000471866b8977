package vectorstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/caldex/core"
)

// Record is the stored form of an embedded document.
type Record struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalRecord serializes a document and its vector for storage.
// Metadata is normalized first so every stored value is a scalar.
func MarshalRecord(doc *core.Document, vector []float32) ([]byte, error) {
	rec := &Record{
		ID:       doc.ID,
		Content:  doc.Content,
		Vector:   vector,
		Metadata: NormalizeMetadata(doc.Metadata),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalRecord deserializes a stored record.
func UnmarshalRecord(data []byte) (*Record, error) {
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return rec, nil
}

// Document rebuilds the retrieval document view of a record.
func (r *Record) Document() *core.Document {
	return &core.Document{
		ID:       r.ID,
		Content:  r.Content,
		Metadata: r.Metadata,
	}
}

// NormalizeMetadata reduces metadata values to scalars. String lists are
// flattened to a comma-joined string; anything else non-scalar is encoded
// as JSON. nil values are dropped.
func NormalizeMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}

	cleaned := make(map[string]any, len(metadata))
	for key, value := range metadata {
		switch v := value.(type) {
		case nil:
			continue
		case string, bool, int, int32, int64, float32, float64:
			cleaned[key] = v
		case []string:
			cleaned[key] = strings.Join(v, ",")
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				continue
			}
			cleaned[key] = string(encoded)
		}
	}
	return cleaned
}
