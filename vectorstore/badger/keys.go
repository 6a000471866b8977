package badger

const (
	// docPrefix namespaces document records in the key space.
	docPrefix = "caldoc:"
)

// makeDocKey builds the key for a document record.
func makeDocKey(id string) []byte {
	return []byte(docPrefix + id)
}
